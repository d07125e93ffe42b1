package leads

import "time"

// SeedLeads is the fixed first-run collection so listings and analytics are
// never empty. Dates are relative to now.
func SeedLeads(now time.Time) []Lead {
	now = now.UTC()
	return []Lead{
		{
			ID:          "1",
			ReferenceID: "REF-9821",
			Name:        "Alice Smith",
			Contact:     "alice@example.com",
			Service:     "Cardiology",
			Source:      SourceBookingForm,
			Date:        now.Add(-48 * time.Hour),
			Status:      StatusContacted,
		},
		{
			ID:          "2",
			ReferenceID: "REF-3342",
			Name:        "Bob Jones",
			Contact:     "555-0123",
			Service:     DefaultService,
			Source:      SourceAIChatbot,
			Date:        now.Add(-24 * time.Hour),
			Status:      StatusNew,
		},
	}
}
