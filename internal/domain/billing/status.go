package billing

import "slices"

var graph = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusSuccess, StatusFailed, StatusCanceled},
	StatusProcessing: {StatusSuccess, StatusFailed, StatusCanceled},
	StatusSuccess:    {StatusRefunded},
	StatusFailed:     {StatusPending},
	StatusCanceled:   {StatusPending},
	StatusRefunded:   nil,
}

// CanTransition reports whether a payment may move from one status to another.
func CanTransition(from, to Status) bool {
	return slices.Contains(graph[from], to)
}

// Sources lists every status that may move to the given one.
func Sources(to Status) []Status {
	var out []Status
	for _, from := range []Status{StatusPending, StatusProcessing, StatusSuccess, StatusFailed, StatusCanceled, StatusRefunded} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

func (s Status) IsTerminal() bool { return s == StatusRefunded }

func (s Status) IsActive() bool { return slices.Contains(ActiveStatuses, s) }
