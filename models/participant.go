package models

import "fmt"

type ParticipantType string

const (
	ParticipantStudio  ParticipantType = "STUDIO"
	ParticipantTeacher ParticipantType = "TEACHER"
)

func (t ParticipantType) IsValid() bool {
	return t == ParticipantStudio || t == ParticipantTeacher
}

// Participant identifies either a studio or a teacher, never both.
// Build it with StudioParticipant or TeacherParticipant.
type Participant struct {
	Type ParticipantType `json:"type"`
	ID   string          `json:"id"`
}

func StudioParticipant(id string) Participant {
	return Participant{Type: ParticipantStudio, ID: id}
}

func TeacherParticipant(id string) Participant {
	return Participant{Type: ParticipantTeacher, ID: id}
}

func (p Participant) Validate() error {
	if !p.Type.IsValid() {
		return fmt.Errorf("invalid participant type %q", p.Type)
	}
	if p.ID == "" {
		return fmt.Errorf("%s participant id is required", p.Type)
	}
	return nil
}

func (p Participant) String() string {
	return string(p.Type) + ":" + p.ID
}
