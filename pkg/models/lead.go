package models

import "time"

// Lead is the CRM entity a workflow instance runs against. Attributes hold
// the lead's free-form fields (contact info, pipeline stage, custom fields)
// referenced by branch rules.
type Lead struct {
	ID         string         `json:"id"`
	OwnerID    string         `json:"owner_id" validate:"required"`
	Industry   Industry       `json:"industry" validate:"required"`
	Name       string         `json:"name"     validate:"required"`
	Email      string         `json:"email,omitempty"    validate:"omitempty,email"`
	Phone      string         `json:"phone,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// BranchFields flattens the lead for branch rule evaluation. Built-in
// fields sit alongside custom attributes; attributes never shadow
// built-ins.
func (l *Lead) BranchFields() map[string]any {
	fields := make(map[string]any, len(l.Attributes)+5)

	for k, v := range l.Attributes {
		fields[k] = v
	}

	fields["id"] = l.ID
	fields["name"] = l.Name
	fields["email"] = l.Email
	fields["phone"] = l.Phone
	fields["industry"] = string(l.Industry)

	return fields
}
