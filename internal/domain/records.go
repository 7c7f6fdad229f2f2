package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/abelbrown/staffproof/internal/mutate"
)

const dateLayout = "2006-01-02"

// Collection names.
const (
	Notifications = "notifications"
	Blacklist     = "blacklist"
	Billing       = "billing"
	Employees     = "employees"
	Employers     = "employers"
	Cases         = "cases"
	Verifiers     = "verifiers"
)

// Record is implemented by every collection item.
type Record interface {
	Key() string
	Cells() []string
}

// keyed is a Record that can be re-keyed, which optimistic creates need.
type keyed[T any] interface {
	Record
	WithKey(key string) T
}

// IdentityOf builds the mutate.Identity for a record type.
func IdentityOf[T keyed[T]]() mutate.Identity[T] {
	return mutate.Identity[T]{
		Key:     func(r T) string { return r.Key() },
		WithKey: func(r T, key string) T { return r.WithKey(key) },
	}
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// Notification is an in-app message to a user.
type Notification struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Message   string    `json:"message" yaml:"message"`
	Type      string    `json:"type" yaml:"type"` // info, warning, alert
	Read      bool      `json:"read" yaml:"read"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

func (n Notification) Key() string { return n.ID }

func (n Notification) WithKey(key string) Notification { n.ID = key; return n }

func (n Notification) Cells() []string {
	mark := "●"
	if n.Read {
		mark = " "
	}
	return []string{mark, n.Type, n.Title, day(n.CreatedAt)}
}

// BlacklistEntry is a person barred from verification.
type BlacklistEntry struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Company   string    `json:"company" yaml:"company"`
	Reason    string    `json:"reason" yaml:"reason"`
	Status    string    `json:"status" yaml:"status"` // active, removed
	AddedBy   string    `json:"addedBy" yaml:"addedBy"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

func (b BlacklistEntry) Key() string { return b.ID }

func (b BlacklistEntry) WithKey(key string) BlacklistEntry { b.ID = key; return b }

func (b BlacklistEntry) Cells() []string {
	return []string{b.Name, b.Company, b.Reason, b.Status, day(b.CreatedAt)}
}

// BillingRecord is an invoice issued to an employer.
type BillingRecord struct {
	ID        string    `json:"id" yaml:"id"`
	InvoiceNo string    `json:"invoiceNo" yaml:"invoiceNo"`
	Employer  string    `json:"employer" yaml:"employer"`
	Amount    float64   `json:"amount" yaml:"amount"`
	Currency  string    `json:"currency" yaml:"currency"`
	Status    string    `json:"status" yaml:"status"` // paid, pending, overdue
	IssuedAt  time.Time `json:"issuedAt" yaml:"issuedAt"`
}

func (b BillingRecord) Key() string { return b.ID }

func (b BillingRecord) WithKey(key string) BillingRecord { b.ID = key; return b }

func (b BillingRecord) Cells() []string {
	return []string{b.InvoiceNo, b.Employer, fmt.Sprintf("%s %.2f", b.Currency, b.Amount), b.Status, day(b.IssuedAt)}
}

// Employee is a person whose background is verified.
type Employee struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	Email      string    `json:"email" yaml:"email"`
	Department string    `json:"department" yaml:"department"`
	EmployerID string    `json:"employerId" yaml:"employerId"`
	Status     string    `json:"status" yaml:"status"` // verified, pending, rejected
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`
}

func (e Employee) Key() string { return e.ID }

func (e Employee) WithKey(key string) Employee { e.ID = key; return e }

func (e Employee) Cells() []string {
	return []string{e.Name, e.Email, e.Department, e.Status}
}

// Employer is a company that orders verifications.
type Employer struct {
	ID        string    `json:"id" yaml:"id"`
	Company   string    `json:"company" yaml:"company"`
	Contact   string    `json:"contact" yaml:"contact"`
	Email     string    `json:"email" yaml:"email"`
	Plan      string    `json:"plan" yaml:"plan"`     // basic, pro, enterprise
	Status    string    `json:"status" yaml:"status"` // active, suspended
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

func (e Employer) Key() string { return e.ID }

func (e Employer) WithKey(key string) Employer { e.ID = key; return e }

func (e Employer) Cells() []string {
	return []string{e.Company, e.Contact, e.Plan, e.Status}
}

// VerificationCase is one background check.
type VerificationCase struct {
	ID           string    `json:"id" yaml:"id"`
	Subject      string    `json:"subject" yaml:"subject"`
	Employee     string    `json:"employee" yaml:"employee"`
	Type         string    `json:"type" yaml:"type"`         // employment, education, criminal
	Status       string    `json:"status" yaml:"status"`     // open, in_progress, closed
	Priority     string    `json:"priority" yaml:"priority"` // low, medium, high
	VerifierID   string    `json:"verifierId" yaml:"verifierId"`
	VerifierName string    `json:"verifierName" yaml:"verifierName"`
	OpenedAt     time.Time `json:"openedAt" yaml:"openedAt"`
}

func (c VerificationCase) Key() string { return c.ID }

func (c VerificationCase) WithKey(key string) VerificationCase { c.ID = key; return c }

func (c VerificationCase) Cells() []string {
	verifier := c.VerifierName
	if verifier == "" {
		verifier = "-"
	}
	return []string{c.Subject, c.Employee, c.Type, c.Priority, c.Status, verifier}
}

// Verifier is a staff member who works cases.
type Verifier struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Email     string `json:"email" yaml:"email"`
	Capacity  int    `json:"capacity" yaml:"capacity"`
	OpenCases int    `json:"openCases" yaml:"openCases"`
	Active    bool   `json:"active" yaml:"active"`
}

func (v Verifier) Key() string { return v.ID }

func (v Verifier) WithKey(key string) Verifier { v.ID = key; return v }

func (v Verifier) Cells() []string {
	state := "active"
	if !v.Active {
		state = "inactive"
	}
	return []string{v.Name, v.Email, strconv.Itoa(v.OpenCases) + "/" + strconv.Itoa(v.Capacity), state}
}

func init() {
	register(Descriptor{
		Name:         Notifications,
		Required:     []string{"title"},
		Title:        "Notifications",
		Envelope:     EnvelopeData,
		SearchFields: []string{"title", "message"},
		Filters: []FilterSpec{
			{Key: "status", Label: "Status", Field: "read", Values: []string{"unread", "read"},
				Map: map[string]any{"unread": false, "read": true}},
			{Key: "type", Label: "Type", Field: "type", Values: []string{"info", "warning", "alert"}},
			{Key: "created", Label: "Created", Field: "createdAt", Kind: FilterDate},
		},
		Columns:   []Column{{"", 1}, {"Type", 8}, {"Title", 40}, {"Created", 10}},
		SortField: "createdAt",
		Actions:   []string{"read"},
		Bulk:      []string{"mark-all-read", "clear-read"},
	})
	register(Descriptor{
		Name:         Blacklist,
		Required:     []string{"name", "reason"},
		Title:        "Blacklist",
		Envelope:     EnvelopeRecords,
		SearchFields: []string{"name", "company", "reason"},
		Filters: []FilterSpec{
			{Key: "status", Label: "Status", Field: "status", Values: []string{"active", "removed"}},
			{Key: "company", Label: "Company", Field: "company"},
		},
		Columns:   []Column{{"Name", 20}, {"Company", 18}, {"Reason", 30}, {"Status", 8}, {"Added", 10}},
		SortField: "createdAt",
	})
	register(Descriptor{
		Name:         Billing,
		Required:     []string{"invoiceNo"},
		Title:        "Billing",
		Envelope:     EnvelopeItems,
		SearchFields: []string{"invoiceNo", "employer"},
		Filters: []FilterSpec{
			{Key: "status", Label: "Status", Field: "status", Values: []string{"paid", "pending", "overdue"}},
			{Key: "issued", Label: "Issued", Field: "issuedAt", Kind: FilterDate},
		},
		Columns:   []Column{{"Invoice", 12}, {"Employer", 22}, {"Amount", 14}, {"Status", 8}, {"Issued", 10}},
		SortField: "issuedAt",
		ReadOnly:  true,
	})
	register(Descriptor{
		Name:         Employees,
		Required:     []string{"name", "email"},
		Title:        "Employees",
		Envelope:     EnvelopeData,
		SearchFields: []string{"name", "email"},
		Filters: []FilterSpec{
			{Key: "status", Label: "Status", Field: "status", Values: []string{"verified", "pending", "rejected"}},
			{Key: "department", Label: "Department", Field: "department", Values: []string{"engineering", "finance", "operations", "sales"}},
		},
		Columns:   []Column{{"Name", 20}, {"Email", 28}, {"Department", 12}, {"Status", 9}},
		SortField: "createdAt",
	})
	register(Descriptor{
		Name:         Employers,
		Required:     []string{"company"},
		Title:        "Employers",
		Envelope:     EnvelopeRecords,
		SearchFields: []string{"company", "contact", "email"},
		Filters: []FilterSpec{
			{Key: "plan", Label: "Plan", Field: "plan", Values: []string{"basic", "pro", "enterprise"}},
			{Key: "status", Label: "Status", Field: "status", Values: []string{"active", "suspended"}},
		},
		Columns:   []Column{{"Company", 24}, {"Contact", 20}, {"Plan", 10}, {"Status", 9}},
		SortField: "createdAt",
	})
	register(Descriptor{
		Name:         Cases,
		Required:     []string{"subject"},
		Title:        "Cases",
		Envelope:     EnvelopeItems,
		SearchFields: []string{"subject", "employee"},
		Filters: []FilterSpec{
			{Key: "status", Label: "Status", Field: "status", Values: []string{"open", "in_progress", "closed"}},
			{Key: "type", Label: "Type", Field: "type", Values: []string{"employment", "education", "criminal"}},
			{Key: "priority", Label: "Priority", Field: "priority", Values: []string{"high", "medium", "low"}},
			{Key: "verifier", Label: "Verifier", Field: "verifierId"},
		},
		Columns:   []Column{{"Subject", 26}, {"Employee", 18}, {"Type", 10}, {"Priority", 8}, {"Status", 11}, {"Verifier", 16}},
		SortField: "openedAt",
		Actions:   []string{"assign", "close"},
	})
	register(Descriptor{
		Name:         Verifiers,
		Required:     []string{"name"},
		Title:        "Verifiers",
		Envelope:     EnvelopeData,
		SearchFields: []string{"name", "email"},
		Filters: []FilterSpec{
			{Key: "active", Label: "Active", Field: "active", Values: []string{"yes", "no"},
				Map: map[string]any{"yes": true, "no": false}},
		},
		Columns:       []Column{{"Name", 20}, {"Email", 28}, {"Load", 7}, {"State", 8}},
		SortField:     "name",
		SortAscending: true,
	})
}
