package room

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var ParticipantIDRule = []validation.Rule{
	validation.Required,
	validation.Length(1, 64),
	validation.Match(regexp.MustCompile(`^[A-Za-z0-9_-]+$`)),
}

var DisplayNameRule = []validation.Rule{
	validation.Required,
	validation.Length(1, 50),
}

var ContentIDRule = []validation.Rule{
	validation.Length(1, 64),
	validation.Match(regexp.MustCompile(`^[A-Za-z0-9_-]+$`)),
}

var MaxParticipantsRule = []validation.Rule{
	validation.Min(0),
}

var PositionRule = []validation.Rule{
	validation.Min(0.0),
}

var SpeedRule = []validation.Rule{
	validation.By(positive),
	validation.Max(16.0),
}

var OrderRule = []validation.Rule{
	validation.In(OrderAsc, OrderDesc),
}

var roomCodeRegexp = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// positive rejects zero too, which the threshold rules treat as empty.
func positive(value any) error {
	v, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}

	if f, ok := v.(float64); ok && f <= 0 {
		return validation.NewError("validation_positive", "must be greater than 0")
	}

	return nil
}
