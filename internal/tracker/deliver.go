package tracker

import (
	"context"
	"fmt"
)

// Delivery is the outcome of sending the parts of one announcement
type Delivery struct {
	MessageIDs []int
	Sent       int
	Total      int
	Err        error
}

// Delivered reports whether the first part went out
func (d Delivery) Delivered() bool {
	return d.Sent > 0
}

// deliver sends parts in order and stops at the first failure
func deliver(ctx context.Context, n Notifier, parts []string) Delivery {
	d := Delivery{Total: len(parts)}
	for i, part := range parts {
		id, err := n.Send(ctx, part)
		if err != nil {
			d.Err = fmt.Errorf("part %d/%d: %w", i+1, len(parts), err)
			break
		}
		d.MessageIDs = append(d.MessageIDs, id)
		d.Sent++
	}
	return d
}

// editParts rewrites previously sent messages with new parts. Parts beyond
// the recorded messages are sent as new messages.
func editParts(ctx context.Context, n Notifier, ids []int, parts []string) ([]int, error) {
	out := make([]int, 0, len(parts))
	for i, part := range parts {
		if i < len(ids) {
			if err := n.Edit(ctx, ids[i], part); err != nil {
				return nil, fmt.Errorf("edit message %d: %w", ids[i], err)
			}
			out = append(out, ids[i])
			continue
		}

		id, err := n.Send(ctx, part)
		if err != nil {
			return nil, fmt.Errorf("send part %d/%d: %w", i+1, len(parts), err)
		}
		out = append(out, id)
	}
	return out, nil
}
