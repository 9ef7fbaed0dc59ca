package mediation

import (
	"strings"

	"github.com/eldersfive/mediator/internal/model"
)

const (
	// DefaultUserName labels a human with no usable profile fields.
	DefaultUserName = "User"

	PartyAPlaceholder = "Party A"
	PartyBPlaceholder = "Party B"
)

// DisplayName picks the name shown for a profile: display name, then full
// name, then email, then DefaultUserName.
func DisplayName(p model.Profile) string {
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		return name
	}
	if name := strings.TrimSpace(p.FullName); name != "" {
		return name
	}
	if email := strings.TrimSpace(p.Email); email != "" {
		return email
	}
	return DefaultUserName
}

func senderName(m model.Message) string {
	if m.Sender == nil {
		return DefaultUserName
	}
	return DisplayName(*m.Sender)
}

// ResolveNames returns the ordered participant names. An explicit list wins;
// otherwise names are inferred from history (oldest first) in first-seen
// order, followed by fallbackName if it has not spoken yet.
func ResolveNames(explicit []model.Participant, history []model.Message, fallbackName string) []string {
	if len(explicit) > 0 {
		names := make([]string, 0, len(explicit))
		for _, p := range explicit {
			names = append(names, DisplayName(model.Profile(p)))
		}
		return names
	}

	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	for _, m := range history {
		if m.IsMediator {
			continue
		}
		add(senderName(m))
	}
	add(fallbackName)

	return names
}

// Parties returns the left and right parties of the win meter, padding with
// placeholders when fewer than two names are known.
func Parties(names []string) (left, right string) {
	left, right = PartyAPlaceholder, PartyBPlaceholder
	if len(names) > 0 && names[0] != "" {
		left = names[0]
	}
	if len(names) > 1 && names[1] != "" {
		right = names[1]
	}
	return left, right
}
