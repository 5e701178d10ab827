package domain

// ConversationKey is the unordered pair of participants of a direct
// conversation, stored with Low <= High.
type ConversationKey struct {
	Low  string
	High string
}

func NewConversationKey(a, b string) ConversationKey {
	if b < a {
		a, b = b, a
	}
	return ConversationKey{Low: a, High: b}
}

func (k ConversationKey) Includes(id string) bool {
	return k.Low == id || k.High == id
}

// Peer returns the other participant, or "" when id is not part of the pair.
func (k ConversationKey) Peer(id string) string {
	switch id {
	case k.Low:
		return k.High
	case k.High:
		return k.Low
	default:
		return ""
	}
}
