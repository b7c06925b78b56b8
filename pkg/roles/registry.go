package roles

import "sync"

type tokenRef struct {
	messageID string
	control   string
}

// Registry holds the live views, keyed by the message that displays them and
// by the custom ids of their controls.
type Registry struct {
	mu        sync.RWMutex
	byMessage map[string]*View
	byToken   map[string]tokenRef
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byMessage: make(map[string]*View),
		byToken:   make(map[string]tokenRef),
	}
}

// Register binds v to messageID, replacing the previous view of the message.
// Pending selections of the replaced view carry over.
func (r *Registry) Register(messageID string, v *View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byMessage[messageID]; ok {
		for _, tok := range old.ids {
			delete(r.byToken, tok)
		}
		v.adoptSelections(old)
	}
	r.byMessage[messageID] = v
	for control, tok := range v.ids {
		r.byToken[tok] = tokenRef{messageID: messageID, control: control}
	}
}

// Unregister drops the view of messageID and reports whether there was one.
func (r *Registry) Unregister(messageID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.byMessage[messageID]
	if !ok {
		return false
	}
	for _, tok := range old.ids {
		delete(r.byToken, tok)
	}
	delete(r.byMessage, messageID)
	return true
}

// View returns the view displayed by messageID.
func (r *Registry) View(messageID string) (*View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.byMessage[messageID]
	return v, ok
}

// Lookup resolves a component custom id to its view, the message showing it
// and the control name.
func (r *Registry) Lookup(customID string) (v *View, messageID, control string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, found := r.byToken[customID]
	if !found {
		return nil, "", "", false
	}
	return r.byMessage[ref.messageID], ref.messageID, ref.control, true
}

// Len returns the number of registered views.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byMessage)
}
