package conversation

import (
	"net/url"
	"strings"

	"github.com/memohai/accelerator/internal/apperr"
)

// Filter attributes accepted by Transcript.
const (
	AttrID             = "id"
	AttrRole           = "role"
	AttrDialogID       = "dialog_id"
	AttrUserID         = "user_id"
	AttrConversationID = "conversation_id"
)

// Filter maps turn attributes to expected values. A turn matches when every
// attribute equals its value. The empty Filter selects every turn.
type Filter map[string]string

// Query keys naming one attribute/value pair. They may repeat.
const (
	queryAttribute = "attribute"
	queryValue     = "value"
)

// ParseFilter builds a filter from query values. Attributes may be given
// directly (role=user&dialog_id=d1) or as repeated attribute/value pairs.
func ParseFilter(query url.Values) (Filter, error) {
	attrs, values := query[queryAttribute], query[queryValue]
	if len(attrs) != len(values) {
		return nil, apperr.New(apperr.KindSchemaInvalid, "transcript filter needs one value per attribute")
	}
	f := Filter{}
	for i, attr := range attrs {
		if err := f.add(attr, values[i]); err != nil {
			return nil, err
		}
	}
	for key, vals := range query {
		if key == queryAttribute || key == queryValue {
			continue
		}
		for _, v := range vals {
			if err := f.add(key, v); err != nil {
				return nil, err
			}
		}
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f Filter) add(attribute, value string) error {
	attribute = strings.ToLower(strings.TrimSpace(attribute))
	value = strings.TrimSpace(value)
	if attribute == "" {
		return nil
	}
	if prev, ok := f[attribute]; ok && prev != value {
		return apperr.New(apperr.KindSchemaInvalid, "transcript filter gives %s twice", attribute)
	}
	f[attribute] = value
	return nil
}

func (f Filter) validate() error {
	for attr := range f {
		switch attr {
		case AttrID, AttrRole, AttrDialogID, AttrUserID, AttrConversationID:
		default:
			return apperr.New(apperr.KindSchemaInvalid, "unknown transcript filter attribute %q", attr)
		}
	}
	return nil
}

func (f Filter) match(t Turn) bool {
	for attr, want := range f {
		if !matchAttribute(t, attr, want) {
			return false
		}
	}
	return true
}

func matchAttribute(t Turn, attr, want string) bool {
	switch attr {
	case AttrID:
		return t.ID == want
	case AttrRole:
		return strings.EqualFold(string(t.Role), want)
	case AttrDialogID:
		return t.DialogID == want
	case AttrUserID:
		return t.UserID == want
	case AttrConversationID:
		return t.ConversationID == want
	}
	return false
}

// UpTo keeps turns with Seq at most seq.
func UpTo(turns []Turn, seq int64) []Turn {
	out := turns[:0:0]
	for _, t := range turns {
		if t.Seq <= seq {
			out = append(out, t)
		}
	}
	return out
}
