package testutil

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/ticket"
)

// complaint is a title/description template pair whose wording steers the
// keyword classifier toward the category it was written for.
type complaint struct {
	title       string
	description string
}

var complaintsByCategory = map[ticket.Category][]complaint{
	ticket.CategoryAuthentication: {
		{"Cannot log in to my account", "My password expired over the weekend and now I am locked out of everything."},
		{"MFA prompt never arrives", "The authenticator app stopped receiving two-factor pushes after I changed phones."},
		{"SSO redirect loop", "Single sign in bounces me back to the login page and my credential is rejected."},
	},
	ticket.CategoryNetwork: {
		{"VPN keeps disconnecting", "The vpn connection drops every twenty minutes and reconnecting takes ages."},
		{"Office wifi unusable", "Wifi signal in the east wing is gone and the wired connection is flaky too."},
		{"Cannot reach internal sites", "DNS lookups for internal domains fail while external sites resolve fine."},
	},
	ticket.CategorySoftware: {
		{"Spreadsheet crashes on save", "The application throws an error and crashes whenever I save a large file."},
		{"Update broke the reporting tool", "After the last update the application freezes on launch with a license error."},
		{"Cannot install approved software", "The install fails halfway with a configuration error I do not understand."},
	},
	ticket.CategoryHardware: {
		{"Laptop battery dies in an hour", "The battery drains from full in under an hour and the device gets very hot."},
		{"Printer jams on every job", "The shared printer mangles paper and the queue backs up for the whole floor."},
		{"External monitor not detected", "My monitor stays black when docked although the laptop screen works."},
	},
	ticket.CategoryAccess: {
		{"Need access to finance share", "Please grant permission to the finance shared drive for quarter close."},
		{"New starter has no accounts", "Onboarding for my new report stalled and their account has no group memberships."},
		{"Role change lost my permissions", "After moving teams my role was not updated and I lost access to the folder I own."},
	},
}

var urgencyPhrases = []string{
	"",
	" This is urgent, I am blocked on a deadline.",
	" Production is affected and everyone on the team sees it.",
	" Not critical, whenever someone has time.",
}

// Faker wraps a seeded gofakeit source with ticket-shaped generators.
type Faker struct {
	f   *gofakeit.Faker
	seq int
}

// NewFaker creates a generator. The same seed yields the same sequence.
func NewFaker(seed uint64) *Faker {
	return &Faker{f: gofakeit.New(int64(seed))}
}

// nextID produces ticket IDs like TCK-1042, unique per generator.
func (g *Faker) nextID() string {
	g.seq++
	return fmt.Sprintf("TCK-%04d", 1000+g.seq)
}

// Ticket generates a submitted ticket whose text leans toward a random
// category.
func (g *Faker) Ticket() *ticket.Ticket {
	categories := ticket.Categories()
	category := categories[g.f.IntRange(0, len(categories)-1)]
	return g.TicketFor(category)
}

// TicketFor generates a submitted ticket whose text leans toward the given
// category. The ticket itself is unclassified; triage decides.
func (g *Faker) TicketFor(category ticket.Category) *ticket.Ticket {
	templates := complaintsByCategory[category]
	c := templates[g.f.IntRange(0, len(templates)-1)]
	urgency := urgencyPhrases[g.f.IntRange(0, len(urgencyPhrases)-1)]

	t := ticket.New(g.nextID(), c.title, c.description+urgency)
	t.Metadata["reporter"] = g.f.Email()
	t.Metadata["department"] = g.f.JobDescriptor()
	return t
}

// Tickets generates n submitted tickets.
func (g *Faker) Tickets(n int) []*ticket.Ticket {
	out := make([]*ticket.Ticket, n)
	for i := range out {
		out[i] = g.Ticket()
	}
	return out
}

// Feedback generates a plausible satisfaction record for the ticket.
// Resolved tickets skew satisfied, escalated ones skew mixed.
func (g *Faker) Feedback(t *ticket.Ticket) *ticket.Feedback {
	resolved := t.Status == ticket.StatusResolved || t.Status == ticket.StatusClosed

	var satisfaction int
	if resolved {
		satisfaction = g.f.IntRange(3, 5)
	} else {
		satisfaction = g.f.IntRange(1, 4)
	}

	fb := &ticket.Feedback{
		TicketID:             t.ID,
		Category:             t.Category,
		Satisfaction:         satisfaction,
		ResolutionSuccessful: resolved && satisfaction >= 3,
	}
	if satisfaction <= 2 {
		fb.Comments = g.f.Sentence(8)
	}
	return fb
}
