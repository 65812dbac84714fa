package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/dirscrape/models"
)

// membersOnly marks access-gated contact values that must not be recorded.
const membersOnly = "members only"

// Landmarks are the CSS selectors locating named fields on a member profile.
// An empty selector disables that field.
type Landmarks struct {
	// Company is the company-name label; its parent holds the location text.
	Company string

	// MemberID holds "ID: <n>".
	MemberID string

	// ExpiryLabel and ExpiryValue are parallel lists zipped in document order.
	ExpiryLabel string
	ExpiryValue string

	// Profile is the free-text company description cell.
	Profile string

	// Address is the block following the "Address" headline.
	Address string

	// ContactRow repeats once per contact field; ContactLabel and ContactValue
	// are evaluated inside each row.
	ContactRow   string
	ContactLabel string
	ContactValue string
}

// DefaultLandmarks returns the selectors of the member-directory profile page.
func DefaultLandmarks() Landmarks {
	return Landmarks{
		Company:      ".company_name .company",
		MemberID:     ".compid span",
		ExpiryLabel:  ".member_expire_lalel",
		ExpiryValue:  ".member_expire_value",
		Profile:      ".profile_table td",
		Address:      `.profile_headline:contains("Address") + div`,
		ContactRow:   ".profile_row",
		ContactLabel: ".profile_label",
		ContactValue: ".profile_val",
	}
}

// DirectoryStrategy extracts the named profile fields located by Landmarks.
type DirectoryStrategy struct {
	company      goquery.Matcher
	memberID     goquery.Matcher
	expiryLabel  goquery.Matcher
	expiryValue  goquery.Matcher
	profile      goquery.Matcher
	address      goquery.Matcher
	contactRow   goquery.Matcher
	contactLabel goquery.Matcher
	contactValue goquery.Matcher
}

// NewDirectoryStrategy compiles the landmark selectors. An invalid selector
// is reported here rather than silently matching nothing at extraction time.
func NewDirectoryStrategy(lm Landmarks) (*DirectoryStrategy, error) {
	s := &DirectoryStrategy{}
	targets := []struct {
		name string
		sel  string
		dst  *goquery.Matcher
	}{
		{"company", lm.Company, &s.company},
		{"member id", lm.MemberID, &s.memberID},
		{"expiry label", lm.ExpiryLabel, &s.expiryLabel},
		{"expiry value", lm.ExpiryValue, &s.expiryValue},
		{"profile", lm.Profile, &s.profile},
		{"address", lm.Address, &s.address},
		{"contact row", lm.ContactRow, &s.contactRow},
		{"contact label", lm.ContactLabel, &s.contactLabel},
		{"contact value", lm.ContactValue, &s.contactValue},
	}
	for _, t := range targets {
		if t.sel == "" {
			continue
		}
		m, err := cascadia.Compile(t.sel)
		if err != nil {
			return nil, fmt.Errorf("extractor: %s selector %q: %w", t.name, t.sel, err)
		}
		*t.dst = m
	}
	return s, nil
}

// MustDirectoryStrategy is NewDirectoryStrategy for selectors known to be valid.
func MustDirectoryStrategy(lm Landmarks) *DirectoryStrategy {
	s, err := NewDirectoryStrategy(lm)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *DirectoryStrategy) Name() string { return "directory" }

func (s *DirectoryStrategy) Apply(doc *goquery.Document, rec *models.Record) error {
	s.applyCompany(doc, rec)
	s.applyMemberID(doc, rec)
	s.applyExpiry(doc, rec)
	s.applyProfile(doc, rec)
	s.applyAddress(doc, rec)
	s.applyContacts(doc, rec)
	return nil
}

func first(doc *goquery.Document, m goquery.Matcher) *goquery.Selection {
	if m == nil {
		return nil
	}
	sel := doc.FindMatcher(m).First()
	if sel.Length() == 0 {
		return nil
	}
	return sel
}

func setNonEmpty(rec *models.Record, key, value string) {
	if value != "" {
		rec.Set(key, value)
	}
}

// applyCompany splits the identity block into the name label and whatever
// else the enclosing block says (the location).
func (s *DirectoryStrategy) applyCompany(doc *goquery.Document, rec *models.Record) {
	sel := first(doc, s.company)
	if sel == nil {
		return
	}
	name := joinedText(sel, "")
	setNonEmpty(rec, "company_name", name)

	enclosing := joinedText(sel.Parent(), " ")
	if name != "" {
		enclosing = strings.ReplaceAll(enclosing, name, "")
	}
	setNonEmpty(rec, "location", strings.Trim(enclosing, " ,"))
}

func (s *DirectoryStrategy) applyMemberID(doc *goquery.Document, rec *models.Record) {
	sel := first(doc, s.memberID)
	if sel == nil {
		return
	}
	id := strings.TrimSpace(joinedText(sel, ""))
	id = strings.TrimSpace(strings.TrimPrefix(id, "ID:"))
	setNonEmpty(rec, "member_id", id)
}

// applyExpiry zips labels with values positionally; surplus entries on the
// longer side are dropped.
func (s *DirectoryStrategy) applyExpiry(doc *goquery.Document, rec *models.Record) {
	if s.expiryLabel == nil || s.expiryValue == nil {
		return
	}
	labels := doc.FindMatcher(s.expiryLabel)
	values := doc.FindMatcher(s.expiryValue)
	n := min(labels.Length(), values.Length())
	for i := 0; i < n; i++ {
		key := NormalizeKey(joinedText(labels.Eq(i), " "))
		setNonEmpty(rec, key, joinedText(values.Eq(i), ""))
	}
}

func (s *DirectoryStrategy) applyProfile(doc *goquery.Document, rec *models.Record) {
	if sel := first(doc, s.profile); sel != nil {
		setNonEmpty(rec, "company_profile", joinedText(sel, "\n"))
	}
}

func (s *DirectoryStrategy) applyAddress(doc *goquery.Document, rec *models.Record) {
	if sel := first(doc, s.address); sel != nil {
		setNonEmpty(rec, "address", joinedText(sel, " "))
	}
}

// applyContacts records one pair per contact row, skipping gated values.
func (s *DirectoryStrategy) applyContacts(doc *goquery.Document, rec *models.Record) {
	if s.contactRow == nil || s.contactLabel == nil || s.contactValue == nil {
		return
	}
	doc.FindMatcher(s.contactRow).Each(func(_ int, row *goquery.Selection) {
		label := row.FindMatcher(s.contactLabel).First()
		value := row.FindMatcher(s.contactValue).First()
		if label.Length() == 0 || value.Length() == 0 {
			return
		}
		val := joinedText(value, " ")
		if isGated(val) {
			return
		}
		setNonEmpty(rec, NormalizeKey(joinedText(label, " ")), val)
	})
}

// isGated reports whether a value is the access-gate placeholder.
func isGated(value string) bool {
	return strings.Contains(strings.ToLower(value), membersOnly)
}
