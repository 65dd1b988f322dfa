package domain

import "time"

// Policy is the trigger cadence of one sensor class.
type Policy struct {
	Class SensorClass

	// Interval is the minimum spacing between two periodic triggers.
	Interval time.Duration
	// Expiration is added to an event's creation time to get its deadline.
	Expiration time.Duration
	// Cron, when set, replaces Interval with a cron schedule.
	Cron string
}

// DefaultPolicies returns the stock cadence table.
func DefaultPolicies() map[SensorClass]Policy {
	return map[SensorClass]Policy{
		ClassGas:          {Class: ClassGas, Interval: 5 * time.Second, Expiration: 60 * time.Second},
		ClassHumidityTemp: {Class: ClassHumidityTemp, Interval: 5 * time.Second, Expiration: 60 * time.Second},
		ClassLight:        {Class: ClassLight, Interval: 5 * time.Second, Expiration: 60 * time.Second},
		ClassMotion:       {Class: ClassMotion, Interval: 1 * time.Second, Expiration: 60 * time.Second},
		ClassCamera:       {Class: ClassCamera, Interval: 60 * time.Second, Expiration: 60 * time.Second},
		ClassMicrophone:   {Class: ClassMicrophone, Interval: 60 * time.Second, Expiration: 60 * time.Second},
	}
}
