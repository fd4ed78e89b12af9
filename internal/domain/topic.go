package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const topicInfix = "aurora-api"

// TopicKey is the structured form of a push topic. Tier 0 means the free
// (untiered) topic; paid topics carry one of the Tiers labels.
type TopicKey struct {
	Env    string
	CityID int64
	Locale string
	Tier   int
}

// String canonicalizes the key to its wire format:
// "{env}-aurora-api-{city}-{locale}" for free topics,
// "{env}-aurora-api-{city}-{locale}-{tier}" for tiered ones.
func (k TopicKey) String() string {
	s := fmt.Sprintf("%s-%s-%d-%s", k.Env, topicInfix, k.CityID, k.Locale)
	if k.Tier != 0 {
		s += "-" + strconv.Itoa(k.Tier)
	}
	return s
}

// ParseTopicKey is the inverse of String. It rejects strings that do not
// round-trip through the canonical format.
func ParseTopicKey(s string) (TopicKey, error) {
	idx := strings.Index(s, "-"+topicInfix+"-")
	if idx <= 0 {
		return TopicKey{}, &ValidationError{Field: "topic", Reason: "missing aurora-api infix: " + s}
	}

	key := TopicKey{Env: s[:idx]}
	rest := strings.Split(s[idx+len(topicInfix)+2:], "-")
	if len(rest) != 2 && len(rest) != 3 {
		return TopicKey{}, &ValidationError{Field: "topic", Reason: "want city-locale[-tier]: " + s}
	}

	cityID, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		return TopicKey{}, &ValidationError{Field: "topic", Reason: "non-numeric city id: " + rest[0]}
	}
	key.CityID = cityID
	key.Locale = rest[1]

	if len(rest) == 3 {
		tier, err := strconv.Atoi(rest[2])
		if err != nil {
			return TopicKey{}, &ValidationError{Field: "topic", Reason: "non-numeric tier: " + rest[2]}
		}
		key.Tier = tier
	}
	return key, nil
}
