package models

// Standings is the read model for one period: the period itself, its
// entries in rank order and the winners projection.
type Standings struct {
	Period      *Period  `json:"period"`
	Provisional bool     `json:"provisional"`
	Entries     []Entry  `json:"entries"`
	Winners     []Winner `json:"winners"`
}
