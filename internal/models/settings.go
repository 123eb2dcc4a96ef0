package models

type AlertSound string

const (
	AlertSoundNone   AlertSound = "none"
	AlertSoundBeep   AlertSound = "beep"
	AlertSoundChime  AlertSound = "chime"
	AlertSoundUrgent AlertSound = "urgent"
)

func (s AlertSound) Valid() bool {
	switch s {
	case AlertSoundNone, AlertSoundBeep, AlertSoundChime, AlertSoundUrgent:
		return true
	}
	return false
}

type Settings struct {
	AlertThreshold float64    `json:"alertThreshold"`
	AlertSound     AlertSound `json:"alertSound"`
}

func DefaultSettings() Settings {
	return Settings{
		AlertThreshold: 6.0,
		AlertSound:     AlertSoundBeep,
	}
}

// SettingsPatch is a partial settings update; nil fields are left untouched.
type SettingsPatch struct {
	AlertThreshold *float64    `json:"alertThreshold,omitempty"`
	AlertSound     *AlertSound `json:"alertSound,omitempty"`
}

func (s Settings) Apply(p SettingsPatch) Settings {
	if p.AlertThreshold != nil {
		s.AlertThreshold = *p.AlertThreshold
	}
	if p.AlertSound != nil {
		s.AlertSound = *p.AlertSound
	}
	return s
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}
