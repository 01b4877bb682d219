package mqtt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// StatusTopic carries the gateway's retained online/offline status.
const StatusTopic = "mqttgate/status"

// maxTopicLength is the MQTT limit on encoded topic length.
const maxTopicLength = 65535

// ValidateTopicName checks that topic can be used for PUBLISH: non-empty,
// valid UTF-8, within the protocol length limit, free of NUL and wildcards.
func ValidateTopicName(topic string) error {
	if err := validateTopicCommon(topic); err != nil {
		return err
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards are not allowed in topic names", ErrInvalidTopic)
	}
	return nil
}

// ValidateTopicFilter checks that filter can be used for SUBSCRIBE.
// "+" must occupy a whole level and "#" must be the whole last level.
func ValidateTopicFilter(filter string) error {
	if err := validateTopicCommon(filter); err != nil {
		return err
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case level == "#":
			if i != len(levels)-1 {
				return fmt.Errorf("%w: '#' must be the last level", ErrInvalidTopic)
			}
		case level == "+":
		case strings.ContainsAny(level, "+#"):
			return fmt.Errorf("%w: wildcard must occupy an entire level", ErrInvalidTopic)
		}
	}
	return nil
}

func validateTopicCommon(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: topic exceeds %d bytes", ErrInvalidTopic, maxTopicLength)
	}
	if !utf8.ValidString(topic) {
		return fmt.Errorf("%w: topic is not valid UTF-8", ErrInvalidTopic)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: topic contains NUL", ErrInvalidTopic)
	}
	return nil
}

// TopicMatches reports whether topic matches filter under MQTT wildcard
// rules. Topics beginning with '$' are not matched by filters whose first
// level is a wildcard.
//
// Examples:
//
//	TopicMatches("sensors/+/temp", "sensors/kitchen/temp") // true
//	TopicMatches("sensors/#", "sensors")                   // true
//	TopicMatches("#", "$SYS/uptime")                       // false
func TopicMatches(filter, topic string) bool {
	if filter == "" || topic == "" {
		return false
	}
	if strings.HasPrefix(topic, "$") && (strings.HasPrefix(filter, "+") || strings.HasPrefix(filter, "#")) {
		return false
	}

	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")

	for i, f := range fl {
		if f == "#" {
			return true
		}
		if i >= len(tl) {
			return false
		}
		if f != "+" && f != tl[i] {
			return false
		}
	}
	return len(fl) == len(tl)
}
