package ui

import (
	"errors"

	"github.com/charmbracelet/huh"

	"github.com/vanderheijden86/topictree/pkg/model"
)

// settingsForm edits the override color of one column key. The bound value
// lives behind a pointer so the form survives Model copies.
type settingsForm struct {
	form  *huh.Form
	key   string
	color *string
}

func validateColorInput(s string) error {
	s = normalizeColor(s)
	if s == "" || validHexColor(s) {
		return nil
	}
	return errors.New("expected a hex color like #ff8800")
}

func newSettingsForm(key, label string, current model.TopicSettings) *settingsForm {
	color := current.OverrideColor
	sf := &settingsForm{key: key, color: &color}
	sf.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Override color for " + label).
				Description("Hex color; leave blank to clear").
				Placeholder("#ff8800").
				Value(sf.color).
				Validate(validateColorInput),
		),
	).WithTheme(huh.ThemeDracula()).WithShowHelp(false)
	return sf
}

// settings returns current with the edited color applied.
func (sf *settingsForm) settings(current model.TopicSettings) model.TopicSettings {
	next := current
	next.OverrideColor = normalizeColor(*sf.color)
	return next
}
