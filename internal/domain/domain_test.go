package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	names := Names()
	assert.Equal(t, []string{"billing", "blacklist", "cases", "employees", "employers", "notifications", "verifiers"}, names)

	d, ok := Lookup(Notifications)
	require.True(t, ok)
	assert.Equal(t, EnvelopeData, d.Envelope)
	assert.True(t, d.HasAction("read"))
	assert.True(t, d.HasBulk("mark-all-read"))
	assert.False(t, d.HasBulk("delete-everything"))

	_, ok = Lookup("payroll")
	assert.False(t, ok)
}

func TestEveryEnvelopeIsServed(t *testing.T) {
	seen := map[Envelope]bool{}
	for _, d := range All() {
		seen[d.Envelope] = true
		assert.NotEmpty(t, d.SearchFields, d.Name)
		assert.NotEmpty(t, d.Columns, d.Name)
		assert.NotEmpty(t, d.SortField, d.Name)
	}
	assert.Len(t, seen, 3)
}

func TestFilterCycling(t *testing.T) {
	d, _ := Lookup(Cases)
	f, ok := d.Filter("status")
	require.True(t, ok)

	var got []string
	v := ""
	for i := 0; i < 4; i++ {
		v = f.Next(v)
		got = append(got, v)
	}
	assert.Equal(t, []string{"open", "in_progress", "closed", ""}, got)
	assert.Equal(t, "open", f.Next("bogus"))

	free, _ := d.Filter("verifier")
	assert.Equal(t, "", free.Next(""), "free-form filters do not cycle")
}

func TestIdentityOf(t *testing.T) {
	id := IdentityOf[VerificationCase]()
	c := VerificationCase{ID: "c1", Subject: "Check"}
	assert.Equal(t, "c1", id.Key(c))

	tmp := id.WithKey(c, "tmp-1")
	assert.Equal(t, "tmp-1", tmp.ID)
	assert.Equal(t, "c1", c.ID, "WithKey must not mutate the original")
}

func TestCellsMatchColumns(t *testing.T) {
	records := map[string]Record{
		Notifications: Notification{},
		Blacklist:     BlacklistEntry{},
		Billing:       BillingRecord{},
		Employees:     Employee{},
		Employers:     Employer{},
		Cases:         VerificationCase{},
		Verifiers:     Verifier{},
	}
	for name, r := range records {
		d, ok := Lookup(name)
		require.True(t, ok, name)
		assert.Len(t, r.Cells(), len(d.Columns), name)
	}
}
