package riot

// AccountResponse represents the response from /riot/account/v1/accounts/by-riot-id
type AccountResponse struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// MatchResponse represents the response from /lol/match/v5/matches/{matchId}.
// Numeric fields that Riot has added or dropped across data versions are
// pointers so the normalizer can tell "absent" from zero.
type MatchResponse struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

type MatchMetadata struct {
	DataVersion  string   `json:"dataVersion"`
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}

type MatchInfo struct {
	GameCreation       *int64             `json:"gameCreation"`
	GameStartTimestamp *int64             `json:"gameStartTimestamp"`
	GameEndTimestamp   *int64             `json:"gameEndTimestamp"`
	GameDuration       *int64             `json:"gameDuration"`
	GameMode           string             `json:"gameMode"`
	GameVersion        string             `json:"gameVersion"`
	QueueID            *int               `json:"queueId"`
	PlatformID         string             `json:"platformId"`
	Participants       []MatchParticipant `json:"participants"`
}

type MatchParticipant struct {
	ParticipantID      *int   `json:"participantId"`
	PUUID              string `json:"puuid"`
	RiotIdGameName     string `json:"riotIdGameName"`
	RiotIdTagline      string `json:"riotIdTagline"`
	ChampionID         *int   `json:"championId"`
	ChampionName       string `json:"championName"`
	TeamPosition       string `json:"teamPosition"` // TOP, JUNGLE, MIDDLE, BOTTOM, UTILITY
	IndividualPosition string `json:"individualPosition"`
	Win                *bool  `json:"win"`

	Kills                       *int `json:"kills"`
	Deaths                      *int `json:"deaths"`
	Assists                     *int `json:"assists"`
	TotalMinionsKilled          *int `json:"totalMinionsKilled"`
	NeutralMinionsKilled        *int `json:"neutralMinionsKilled"`
	GoldEarned                  *int `json:"goldEarned"`
	VisionScore                 *int `json:"visionScore"`
	TotalDamageDealtToChampions *int `json:"totalDamageDealtToChampions"`
	TotalDamageTaken            *int `json:"totalDamageTaken"`

	Item0 *int `json:"item0"`
	Item1 *int `json:"item1"`
	Item2 *int `json:"item2"`
	Item3 *int `json:"item3"`
	Item4 *int `json:"item4"`
	Item5 *int `json:"item5"`
	Item6 *int `json:"item6"` // Trinket
}

// ItemSlots returns the seven item slots in inventory order.
func (p *MatchParticipant) ItemSlots() []*int {
	return []*int{p.Item0, p.Item1, p.Item2, p.Item3, p.Item4, p.Item5, p.Item6}
}

// TimelineResponse represents the response from /lol/match/v5/matches/{matchId}/timeline
type TimelineResponse struct {
	Metadata TimelineMetadata `json:"metadata"`
	Info     TimelineInfo     `json:"info"`
}

type TimelineMetadata struct {
	DataVersion  string   `json:"dataVersion"`
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}

type TimelineInfo struct {
	FrameInterval int                   `json:"frameInterval"`
	Frames        []TimelineFrame       `json:"frames"`
	Participants  []TimelineParticipant `json:"participants"`
}

// TimelineParticipant maps a PUUID to the participant id used inside frames.
type TimelineParticipant struct {
	ParticipantID int    `json:"participantId"`
	PUUID         string `json:"puuid"`
}

type TimelineFrame struct {
	Timestamp         int64                       `json:"timestamp"`
	ParticipantFrames map[string]ParticipantFrame `json:"participantFrames"` // keyed by participant id
	Events            []TimelineEvent             `json:"events"`
}

type ParticipantFrame struct {
	ParticipantID       int       `json:"participantId"`
	Level               *int      `json:"level"`
	MinionsKilled       *int      `json:"minionsKilled"`
	JungleMinionsKilled *int      `json:"jungleMinionsKilled"`
	TotalGold           *int      `json:"totalGold"`
	XP                  *int      `json:"xp"`
	Position            *Position `json:"position"`
}

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type TimelineEvent struct {
	Type                    string    `json:"type"`
	Timestamp               int64     `json:"timestamp"`
	ParticipantID           int       `json:"participantId,omitempty"`
	CreatorID               int       `json:"creatorId,omitempty"`
	KillerID                int       `json:"killerId,omitempty"`
	VictimID                int       `json:"victimId,omitempty"`
	AssistingParticipantIDs []int     `json:"assistingParticipantIds,omitempty"`
	ItemID                  int       `json:"itemId,omitempty"`
	WardType                string    `json:"wardType,omitempty"`
	MonsterType             string    `json:"monsterType,omitempty"`
	MonsterSubType          string    `json:"monsterSubType,omitempty"`
	BuildingType            string    `json:"buildingType,omitempty"`
	TowerType               string    `json:"towerType,omitempty"`
	LaneType                string    `json:"laneType,omitempty"`
	KillType                string    `json:"killType,omitempty"`
	Bounty                  int       `json:"bounty,omitempty"`
	Position                *Position `json:"position,omitempty"`
}

// Assisted reports whether participantID is listed as an assist on the event.
func (e *TimelineEvent) Assisted(participantID int) bool {
	for _, id := range e.AssistingParticipantIDs {
		if id == participantID {
			return true
		}
	}
	return false
}

// PlatformStatus is the subset of /lol/status/v4/platform-data used for key checks.
type PlatformStatus struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
