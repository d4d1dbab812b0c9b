package mqtt

// Topics builds the topic names under the configured root (default
// "hearo").
type Topics struct {
	Root string
}

func (t Topics) root() string {
	if t.Root == "" {
		return "hearo"
	}
	return t.Root
}

// Event is the topic carrying a republished bus event, one subtopic
// per event name: hearo/events/NFC_EVENT_TAG_ADDED and so on.
func (t Topics) Event(name string) string {
	return t.root() + "/events/" + name
}

// Status is the retained device online/offline topic.
func (t Topics) Status() string {
	return t.root() + "/system/status"
}
