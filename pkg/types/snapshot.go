package types

import "time"

// Snapshot is the full room state sent to every client after each change.
type Snapshot struct {
	Version      int        `json:"version"`
	Room         string     `json:"room"`
	Stage        string     `json:"stage"` // create | seed | plan | play | paused | finished
	TimerValue   int        `json:"timerValue"`
	TimerRunning bool       `json:"timerRunning"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	SeedPrompt   bool       `json:"seedPrompt"`
	Settings     Settings   `json:"settings"`
	Cells        []Cell     `json:"cells"`
	Log          []LogEntry `json:"log"`
	HostToken    string     `json:"hostToken"`
	Presence     []Presence `json:"presence"`
	Result       *Result    `json:"result,omitempty"`
}

type Settings struct {
	Size              int    `json:"size"`
	Seed              string `json:"seed"`
	FreeCenter        bool   `json:"freeCenter"`
	Mode              string `json:"mode"`
	GoalsSource       string `json:"goalsSource"`
	GoalsSourceType   string `json:"goalsSourceType"`
	GoalsSourceURL    string `json:"goalsSourceUrl,omitempty"`
	GoalsFallback     bool   `json:"goalsFallback"`
	GameMode          string `json:"gameMode"`
	BotDifficulty     string `json:"botDifficulty"`
	BotName           string `json:"botName"`
	QuantityThreshold int    `json:"quantityThreshold"`
}

type Cell struct {
	Index      int      `json:"index"`
	GoalID     string   `json:"goalId"`
	Text       string   `json:"text"`
	Difficulty int      `json:"difficulty,omitempty"`
	Marks      []string `json:"marks"` // tokens, in marking order
}

type LogEntry struct {
	ActorName   string    `json:"actorName"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	Color       string    `json:"color,omitempty"`
}

type Presence struct {
	Token       string `json:"token"`
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Role        string `json:"role"` // host | player | bot
	Connections int    `json:"connections"`
}

type Result struct {
	Kind        string `json:"kind"` // line | quantity
	Owner       string `json:"owner"`
	OwnerName   string `json:"ownerName"`
	Line        []int  `json:"line,omitempty"`
	Count       int    `json:"count,omitempty"`
	Description string `json:"description"`
}
