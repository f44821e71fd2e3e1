// internal/models/models.go

package models

// Channel names one measured vital sign.
type Channel string

const (
	ChannelHeartRate       Channel = "heart_rate"
	ChannelSystolicBP      Channel = "systolic_bp"
	ChannelDiastolicBP     Channel = "diastolic_bp"
	ChannelTemperature     Channel = "temperature"
	ChannelSpO2            Channel = "spo2"
	ChannelRespiratoryRate Channel = "respiratory_rate"
)

// Channels lists every vital channel in evaluation order.
var Channels = []Channel{
	ChannelHeartRate,
	ChannelSystolicBP,
	ChannelDiastolicBP,
	ChannelTemperature,
	ChannelSpO2,
	ChannelRespiratoryRate,
}

func (c Channel) Valid() bool {
	for _, ch := range Channels {
		if ch == c {
			return true
		}
	}
	return false
}

// Label is the human readable channel name used in alert messages.
func (c Channel) Label() string {
	switch c {
	case ChannelHeartRate:
		return "Heart rate"
	case ChannelSystolicBP:
		return "Systolic BP"
	case ChannelDiastolicBP:
		return "Diastolic BP"
	case ChannelTemperature:
		return "Temperature"
	case ChannelSpO2:
		return "SpO2"
	case ChannelRespiratoryRate:
		return "Respiratory rate"
	default:
		return string(c)
	}
}

// Role values carried in identity claims.
const (
	RoleAdmin     = "admin"
	RoleClinician = "clinician"
)

// Identity is the authenticated caller as seen by handlers and sessions.
type Identity struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	Role   string `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
