package channel

import "github.com/AtharvaShastrakar/orangeChat/domain/chat"

// reconcile merges the buffered events into the bulk-loaded baseline.
// Creates already present in the baseline are dropped and deletes are
// applied against the merged list. Appends follow arrival order, not
// created_at, since the push channel gives no ordering across writers.
func reconcile(base []chat.AuthoredMessage, buffered []chat.RowEvent, tombstones map[string]struct{}) []chat.AuthoredMessage {
	out := make([]chat.AuthoredMessage, 0, len(base)+len(buffered))
	seen := make(map[string]struct{}, len(base))
	for _, m := range base {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	for _, ev := range buffered {
		out = apply(out, ev, tombstones)
	}
	return out
}

// apply folds a single event into list. A create for a known or deleted id
// and a delete for an unknown id are no-ops.
func apply(list []chat.AuthoredMessage, ev chat.RowEvent, tombstones map[string]struct{}) []chat.AuthoredMessage {
	id := ev.Message.ID
	switch ev.Kind {
	case chat.EventCreated:
		if _, gone := tombstones[id]; gone {
			return list
		}
		if _, ok := find(list, id); ok {
			return list
		}
		return append(list, toAuthored(ev))
	case chat.EventDeleted:
		if tombstones != nil {
			tombstones[id] = struct{}{}
		}
		for i := range list {
			if list[i].ID == id {
				return append(list[:i:i], list[i+1:]...)
			}
		}
	}
	return list
}

func find(list []chat.AuthoredMessage, id string) (chat.AuthoredMessage, bool) {
	for _, m := range list {
		if m.ID == id {
			return m, true
		}
	}
	return chat.AuthoredMessage{}, false
}

func toAuthored(ev chat.RowEvent) chat.AuthoredMessage {
	author := chat.PlaceholderAuthor(ev.Message.UserID)
	if ev.Author != nil {
		author = *ev.Author
	}
	return chat.AuthoredMessage{Message: ev.Message, Author: author}
}
