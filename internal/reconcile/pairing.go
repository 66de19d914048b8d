package reconcile

import "fmt"

// Pairing describes who may message the telegram bot per one config document.
type Pairing struct {
	Mode      string   `json:"mode"`
	Locked    bool     `json:"locked"`
	AllowFrom []string `json:"allowFrom"`
	Note      string   `json:"note"`
}

// TelegramPairing reads channels.telegram from doc. A missing policy reads as open.
func TelegramPairing(doc map[string]any) Pairing {
	p := Pairing{Mode: DMPolicyOpen, AllowFrom: []string{}}
	if mode, ok := Lookup(doc, "channels", "telegram", "dmPolicy").(string); ok && mode != "" {
		p.Mode = mode
	}
	wildcard := false
	if list, ok := Lookup(doc, "channels", "telegram", "allowFrom").([]any); ok {
		for _, v := range list {
			id := fmt.Sprint(v)
			if id == AnySender {
				wildcard = true
			}
			p.AllowFrom = append(p.AllowFrom, id)
		}
	}
	p.Locked = p.Mode == DMPolicyAllowlist && len(p.AllowFrom) > 0 && !wildcard
	if p.Mode == DMPolicyAllowlist {
		p.Note = "Your bot is locked. Only approved users can chat with it."
	} else {
		p.Note = "Your bot is live. Send any message in Telegram and your AI will reply."
	}
	return p
}
