package api

import "github.com/stellarlinkco/myalex/internal/auth"

// LocationInfo is the location row resolved by the backend for a coordinate.
type LocationInfo struct {
	Name             string `json:"name"`
	HistoricalPeriod string `json:"historical_period"`
	Description      string `json:"description"`
}

// EraDetail is one historical era summary (Ptolemaic, Roman, Islamic, Modern).
type EraDetail struct {
	Era     string `json:"era"`
	Summary string `json:"summary"`
}

type ContextCoordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type ContextMetadata struct {
	UserLanguage string             `json:"user_language"`
	TimeOfDay    string             `json:"time_of_day,omitempty"`
	GeneratedAt  string             `json:"generated_at,omitempty"`
	Coordinates  ContextCoordinates `json:"coordinates"`
}

// HistoricalContextResponse is the full payload of the historical-location
// webhook.
type HistoricalContextResponse struct {
	Success           bool            `json:"success"`
	Error             string          `json:"error,omitempty"`
	HistoricalContext string          `json:"historical_context"`
	LocationInfo      LocationInfo    `json:"location_info"`
	Metadata          ContextMetadata `json:"metadata"`
	EraDetails        []EraDetail     `json:"era_details"`
}

type PredictedEvent struct {
	EventID                string   `json:"event_id"`
	Title                  string   `json:"title"`
	PredictedDate          string   `json:"predicted_date"`
	PredictedTime          string   `json:"predicted_time"`
	Venue                  string   `json:"venue"`
	EventType              string   `json:"event_type"`
	ConfidenceScore        float64  `json:"confidence_score"`
	Reasoning              string   `json:"reasoning"`
	WeatherDependency      string   `json:"weather_dependency"`
	CulturalSignificance   string   `json:"cultural_significance"`
	PreparationSuggestions []string `json:"preparation_suggestions"`
}

type PatternInsights struct {
	DetectedTrends             []string `json:"detected_trends"`
	SeasonalFactors            []string `json:"seasonal_factors"`
	CulturalCalendarInfluences []string `json:"cultural_calendar_influences"`
}

type PredictedEventsResponse struct {
	Success         bool             `json:"success,omitempty"`
	ValidatedEvents []PredictedEvent `json:"validated_events"`
	PatternInsights PatternInsights  `json:"pattern_insights"`
}

type RoomSuggestion struct {
	Type               string   `json:"type"`
	Users              []string `json:"users"`
	Topic              string   `json:"topic,omitempty"`
	Neighborhood       string   `json:"neighborhood,omitempty"`
	CompatibilityScore float64  `json:"compatibility_score"`
	SuggestedRoomName  string   `json:"suggested_room_name"`
	Reason             string   `json:"reason"`
}

type SocialAnalysisResponse struct {
	Success           bool             `json:"success"`
	RoomSuggestions   []RoomSuggestion `json:"room_suggestions"`
	AnalysisTimestamp string           `json:"analysis_timestamp"`
}

type DiscussionStarter struct {
	Topic           string `json:"topic"`
	StarterQuestion string `json:"starter_question"`
	Context         string `json:"context"`
}

type TrendingTopicsResponse struct {
	Success            bool                `json:"success"`
	DiscussionStarters []DiscussionStarter `json:"discussion_starters"`
	AnalysisTimestamp  string              `json:"analysis_timestamp"`
}

type EmergencyService struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Phone   string  `json:"phone"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

type SafetyNetResponse struct {
	Success           bool               `json:"success"`
	AlertLevel        string             `json:"alertLevel"`
	AlertMessage      string             `json:"alertMessage"`
	SafetyTips        []string           `json:"safetyTips"`
	EmergencyServices []EmergencyService `json:"emergencyServices"`
	LastUpdated       string             `json:"lastUpdated"`
}

// CulturalResponse is the answer shape of the generative endpoints.
type CulturalResponse struct {
	Answer            string      `json:"answer"`
	FollowUpQuestions []string    `json:"followUpQuestions"`
	EraDetails        []EraDetail `json:"eraDetails,omitempty"`
}

type LoginResponse struct {
	Token string    `json:"token"`
	User  auth.User `json:"user"`
}

// UserActivity is the payload of the social-graph analysis webhook.
type UserActivity struct {
	UserID             string           `json:"user_id"`
	UserText           string           `json:"user_text"`
	LocationHistory    []Neighborhood   `json:"location_history"`
	InteractionHistory []map[string]any `json:"interaction_history"`
}

type Neighborhood struct {
	Neighborhood string `json:"neighborhood"`
}
