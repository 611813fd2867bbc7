package bonus

import (
	"fmt"
	"strings"

	"github.com/missionlab/payment-service/pkg/eventbus"
)

// Inbound event types.
const (
	EventUserRegistered      = "user.registered"
	EventTeamCreated         = "team.created"
	EventMissionCompleted    = "mission.completed"
	EventAchievementUnlocked = "achievement.unlocked"
)

const (
	welcomeBonus      = 1
	teamCreationBonus = 2
	defaultBonus      = 1
)

var missionBonus = map[string]int{
	"EASY":   1,
	"MEDIUM": 2,
	"HARD":   3,
	"EXPERT": 5,
}

var achievementBonus = map[string]int{
	"FIRST_MISSION": 2,
	"WEEK_STREAK":   3,
	"MONTH_STREAK":  10,
	"EXPERT_LEVEL":  15,
	"TEAM_LEADER":   5,
}

// Grant is the ticket credit an event earns.
type Grant struct {
	UserID  int64
	Tickets int
	Reason  string
}

// GrantFor maps an inbound event to its grant. It reports false for event
// types that earn nothing.
func GrantFor(e eventbus.Envelope) (Grant, bool) {
	g := Grant{UserID: e.UserID}

	switch e.EventType {
	case EventUserRegistered:
		g.Tickets, g.Reason = welcomeBonus, "Welcome bonus"
	case EventTeamCreated:
		g.Tickets, g.Reason = teamCreationBonus, "Team creation bonus"
	case EventMissionCompleted:
		difficulty := e.String("difficulty", "EASY")
		g.Tickets = lookup(missionBonus, difficulty)
		g.Reason = fmt.Sprintf("Mission completion bonus (%s)", difficulty)
	case EventAchievementUnlocked:
		kind := e.String("achievement_type", "UNKNOWN")
		g.Tickets = lookup(achievementBonus, kind)
		g.Reason = fmt.Sprintf("Achievement unlock bonus (%s)", kind)
	default:
		return Grant{}, false
	}
	return g, true
}

func lookup(table map[string]int, key string) int {
	if n, ok := table[strings.ToUpper(key)]; ok {
		return n
	}
	return defaultBonus
}
