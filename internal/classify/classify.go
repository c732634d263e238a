// Package classify maps raw inventory log records onto viewer-specific
// notifications. It is pure: no I/O, no clock, no shared state.
package classify

import (
	"fmt"

	"github.com/nhle/toolroom/internal/model"
)

// Titles shown for each recognised record shape.
const (
	TitleInbound        = "INBOUND TOOL"
	TitleShipment       = "SHIPMENT"
	TitleNewRequest     = "NEW REQUEST"
	TitleYourRequest    = "YOUR REQUEST"
	TitleDelivery       = "DELIVERY ARRIVED"
	TitleReceived       = "ITEM RECEIVED"
	TitleRefused        = "TRANSFER REFUSED"
	titleGenericDefault = "ACTIVITY"
)

// Placeholders substituted for missing joined fields.
const (
	UnknownItemName   = "Unknown tool"
	CentralBranchName = "Central"
)

// IsRelevant reports whether a record concerns the viewer at all.
// Administrators see everything; everyone else needs a branch match on
// the source, the destination or the item's current location.
func IsRelevant(r model.LogRecord, viewer model.ViewerContext) bool {
	if viewer.IsAdmin() {
		return true
	}
	me := viewer.EffectiveBranch()
	if me == "" {
		return false
	}
	return r.FromBranch == me || r.ToBranch == me || r.Item.BranchID == me
}

// Classify turns one record into a notification for viewer. The second
// return value is false when the record is not relevant to the viewer.
// Unknown actions and malformed records degrade to a generic notification
// instead of failing.
func Classify(r model.LogRecord, viewer model.ViewerContext) (model.Notification, bool) {
	if !IsRelevant(r, viewer) {
		return model.Notification{}, false
	}

	me := viewer.EffectiveBranch()
	isToMe := me != "" && r.ToBranch == me
	item := ItemName(r)

	n := model.Notification{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Record:    r,
	}

	switch r.Action {
	case model.ActionTransfer:
		n.Severity = model.SeverityInfo
		if isToMe {
			n.Title = TitleInbound
			n.Direction = model.DirectionIncoming
			n.Message = fmt.Sprintf("%s is on its way from %s.", item, fromName(r))
		} else {
			n.Title = TitleShipment
			n.Direction = model.DirectionOutgoing
			n.Message = fmt.Sprintf("%s shipped from %s to %s.", item, fromName(r), toName(r))
		}

	case model.ActionOrder:
		if r.FromBranch == r.ToBranch {
			return generic(n, r, item), true
		}
		n.Severity = model.SeverityWarning
		if me != "" && r.FromBranch == me {
			n.Title = TitleNewRequest
			n.Direction = model.DirectionIncoming
			n.Message = fmt.Sprintf("%s requests %s.", toName(r), item)
		} else {
			n.Title = TitleYourRequest
			n.Direction = model.DirectionOutgoing
			n.Message = fmt.Sprintf("Request for %s sent to %s.", item, fromName(r))
		}

	case model.ActionReceipt:
		n.Severity = model.SeveritySuccess
		if isToMe {
			n.Title = TitleDelivery
			n.Direction = model.DirectionIncoming
			n.Message = fmt.Sprintf("%s was received at %s.", item, toName(r))
		} else {
			n.Title = TitleReceived
			n.Direction = model.DirectionOutgoing
			n.Message = fmt.Sprintf("%s confirmed receipt of %s.", toName(r), item)
		}

	case model.ActionRefusal:
		n.Title = TitleRefused
		n.Severity = model.SeverityWarning
		n.Direction = model.DirectionOutgoing
		if isToMe {
			n.Direction = model.DirectionIncoming
		}
		n.Message = r.Notes
		if n.Message == "" {
			n.Message = fmt.Sprintf("Transfer of %s was refused.", item)
		}

	default:
		return generic(n, r, item), true
	}

	return n, true
}

// ClassifyBatch classifies records in order, dropping irrelevant ones.
// Records are expected newest-first and the order is preserved.
func ClassifyBatch(records []model.LogRecord, viewer model.ViewerContext) []model.Notification {
	out := make([]model.Notification, 0, len(records))
	for _, r := range records {
		if n, ok := Classify(r, viewer); ok {
			out = append(out, n)
		}
	}
	return out
}

func generic(n model.Notification, r model.LogRecord, item string) model.Notification {
	n.Title = string(r.Action)
	if n.Title == "" {
		n.Title = titleGenericDefault
	}
	n.Severity = model.SeverityInfo
	n.Direction = model.DirectionNone
	n.Message = fmt.Sprintf("%s: %s", n.Title, item)
	return n
}

// ItemName returns the joined item name or a placeholder.
func ItemName(r model.LogRecord) string {
	if r.Item.Name == "" {
		return UnknownItemName
	}
	return r.Item.Name
}

func fromName(r model.LogRecord) string {
	return BranchName(r.FromBranch, r.FromBranchName)
}

func toName(r model.LogRecord) string {
	return BranchName(r.ToBranch, r.ToBranchName)
}

// BranchName returns name, or a placeholder derived from id when the
// joined name is missing.
func BranchName(id model.BranchID, name string) string {
	if name != "" {
		return name
	}
	if id.IsCentral() {
		return CentralBranchName
	}
	return "Branch " + string(id)
}
