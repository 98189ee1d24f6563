package drafts

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"
)

// Data is the typed extension bag stored in drafts.data. Each purpose has its
// own key so that writers never clobber each other's payloads.
type Data struct {
	Design       map[string]any `json:"design,omitempty"`
	Preview      *PreviewNote   `json:"preview,omitempty"`
	Revision     *RevisionNote  `json:"revision,omitempty"`
	Cancellation *Cancellation  `json:"cancellation,omitempty"`
	Billing      *BillingInfo   `json:"billing,omitempty"`
	Carrier      *CarrierInfo   `json:"carrier,omitempty"`
}

type PreviewNote struct {
	Notes  string    `json:"notes,omitempty"`
	SentAt time.Time `json:"sent_at"`
}

type RevisionNote struct {
	Number      int       `json:"number"`
	Notes       string    `json:"notes,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

type Cancellation struct {
	Reason     string         `json:"reason,omitempty"`
	FromStatus WorkflowStatus `json:"from_status"`
	CanceledAt time.Time      `json:"canceled_at"`
}

// BillingInfo is ephemeral billing data a customer attaches before commit; it
// is copied into the invoice snapshot.
type BillingInfo struct {
	Type        string `json:"type,omitempty"` // individual | corporate
	FullName    string `json:"full_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	TaxID       string `json:"tax_id,omitempty"`
	TaxOffice   string `json:"tax_office,omitempty"`
	Email       string `json:"email,omitempty"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	Country     string `json:"country,omitempty"`
}

type CarrierInfo struct {
	Carrier     string `json:"carrier"`
	ServiceCode string `json:"service_code,omitempty"`
}

// Merge applies the non-empty parts of patch. Design keys are merged one by
// one; the other parts replace their previous value.
func (d Data) Merge(patch Data) Data {
	out := d.Clone()
	if len(patch.Design) > 0 {
		if out.Design == nil {
			out.Design = make(map[string]any, len(patch.Design))
		}
		maps.Copy(out.Design, patch.Design)
	}
	if patch.Preview != nil {
		v := *patch.Preview
		out.Preview = &v
	}
	if patch.Revision != nil {
		v := *patch.Revision
		out.Revision = &v
	}
	if patch.Cancellation != nil {
		v := *patch.Cancellation
		out.Cancellation = &v
	}
	if patch.Billing != nil {
		v := *patch.Billing
		out.Billing = &v
	}
	if patch.Carrier != nil {
		v := *patch.Carrier
		out.Carrier = &v
	}
	return out
}

func (d Data) Clone() Data {
	out := d
	if d.Design != nil {
		out.Design = maps.Clone(d.Design)
	}
	if d.Preview != nil {
		v := *d.Preview
		out.Preview = &v
	}
	if d.Revision != nil {
		v := *d.Revision
		out.Revision = &v
	}
	if d.Cancellation != nil {
		v := *d.Cancellation
		out.Cancellation = &v
	}
	if d.Billing != nil {
		v := *d.Billing
		out.Billing = &v
	}
	if d.Carrier != nil {
		v := *d.Carrier
		out.Carrier = &v
	}
	return out
}

func (d Data) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *Data) Scan(src any) error {
	return scanJSON(src, d)
}

// ShippingSnapshot is a copy of the delivery address taken when the customer
// picked it; later edits to the address book never reach the draft.
type ShippingSnapshot struct {
	FullName   string `json:"full_name" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
	Line1      string `json:"line1" binding:"required"`
	Line2      string `json:"line2,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city" binding:"required"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country" binding:"required"`
}

func (s ShippingSnapshot) Validate() error {
	switch {
	case s.FullName == "":
		return errors.New("full_name is required")
	case s.Phone == "":
		return errors.New("phone is required")
	case s.Line1 == "":
		return errors.New("line1 is required")
	case s.City == "":
		return errors.New("city is required")
	case s.Country == "":
		return errors.New("country is required")
	}
	return nil
}

func (s ShippingSnapshot) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *ShippingSnapshot) Scan(src any) error {
	return scanJSON(src, s)
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
}
