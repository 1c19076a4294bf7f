package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvagent/internal/document"
)

// User is an account identified by email. Documents cascade on delete.
type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;size:255"`
	FullName     string `gorm:"size:150"`
	PasswordHash string `gorm:"size:255"`
	Phone        string `gorm:"size:20"`
	LinkedinURL  string `gorm:"size:255"`
	GithubURL    string `gorm:"size:255"`
	IsActive     bool   `gorm:"default:true"`
	IsStaff      bool   `gorm:"default:false"`
	Documents    []Document `gorm:"constraint:OnDelete:CASCADE"`
}

// Document is one generation request and its result. UserID is nullable:
// anonymous generation is permitted.
type Document struct {
	gorm.Model
	UserID      *uint `gorm:"index"`
	User        *User `gorm:"constraint:OnDelete:CASCADE"`
	Type        string `gorm:"size:2"` // CV or LM
	Title       string `gorm:"size:255"`
	Role        string `gorm:"size:255"`
	Company     string `gorm:"size:255"`
	ContactName string `gorm:"size:150"`
	ContactMail string `gorm:"size:255"`
	Phone       string `gorm:"size:20"`
	LinkedinURL string `gorm:"size:255"`
	GithubURL   string `gorm:"size:255"`
	Language    string `gorm:"size:2;default:fr"`
	Content     string
	Metadata    datatypes.JSON `gorm:"type:jsonb"`
	Steps       datatypes.JSON `gorm:"type:jsonb"` // replaced atomically on every generation
	Template    string         `gorm:"size:100;default:default"`
	Status      string         `gorm:"size:10;default:pending"`
	Score       int            `gorm:"default:0"`
	PdfKey      string         `gorm:"size:512"`
}

// CVImage is the optional photo attached to a CV-type document.
// The stored object is removed together with the record.
type CVImage struct {
	gorm.Model
	DocumentID  uint     `gorm:"uniqueIndex"`
	Document    Document `gorm:"constraint:OnDelete:CASCADE"`
	ObjectKey   string   `gorm:"size:512"`
	Description string   `gorm:"size:255"`
}

// CurrentStatus decodes the stored status into the domain enum.
func (d *Document) CurrentStatus() document.Status {
	return document.Status(d.Status)
}

// SetStatus applies a validated lifecycle transition.
func (d *Document) SetStatus(next document.Status) error {
	status, err := d.CurrentStatus().Transition(next)
	if err != nil {
		return err
	}
	d.Status = string(status)
	return nil
}
