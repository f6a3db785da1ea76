package models

import (
	"time"
)

// The directory tables below are owned by the school's record-keeping
// services. They are declared here so migrations and backup/restore know their
// shape and foreign keys; this service never edits them outside of a restore.

// Setting is a key/value application setting
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"size:100;not null;uniqueIndex" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string { return "settings" }

// User is a dashboard login
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	FullName     string    `gorm:"not null" json:"full_name"`
	Role         string    `gorm:"size:32;not null;default:staff" json:"role"`
	PasswordHash string    `gorm:"column:password_hash" json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Staff is a teacher or other employee
type Staff struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `gorm:"index" json:"user_id"`
	FullName  string    `gorm:"not null" json:"full_name"`
	Position  string    `json:"position"`
	Phone     string    `json:"phone"`
	Salary    float64   `gorm:"type:numeric(15,2)" json:"salary"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User *User `gorm:"constraint:OnDelete:SET NULL" json:"-"`
}

func (Staff) TableName() string { return "staff" }

// Class is a teaching group
type Class struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Grade     string    `json:"grade"`
	TeacherID *uint     `gorm:"index" json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Teacher *Staff `gorm:"foreignKey:TeacherID;constraint:OnDelete:SET NULL" json:"-"`
}

func (Class) TableName() string { return "classes" }

// Student is an enrolled pupil
type Student struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	ClassID      *uint      `gorm:"index" json:"class_id"`
	FullName     string     `gorm:"not null" json:"full_name"`
	GuardianName string     `json:"guardian_name"`
	Phone        string     `json:"phone"`
	DateOfBirth  *time.Time `gorm:"type:date" json:"date_of_birth"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Class *Class `gorm:"constraint:OnDelete:SET NULL" json:"-"`
}

func (Student) TableName() string { return "students" }

// Attendance is one student's presence record for a day
type Attendance struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID uint      `gorm:"not null;index" json:"student_id"`
	Date      time.Time `gorm:"type:date;not null" json:"date"`
	Status    string    `gorm:"size:16;not null" json:"status"`
	CreatedAt time.Time `json:"created_at"`

	Student *Student `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Attendance) TableName() string { return "attendance" }

// Exam is a scheduled assessment for a class
type Exam struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ClassID   *uint     `gorm:"index" json:"class_id"`
	Subject   string    `gorm:"not null" json:"subject"`
	Date      time.Time `gorm:"type:date" json:"date"`
	MaxScore  float64   `json:"max_score"`
	CreatedAt time.Time `json:"created_at"`

	Class *Class `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Exam) TableName() string { return "exams" }

// Event is a calendar event
type Event struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (Event) TableName() string { return "events" }

// LibraryBook is a library catalogue item
type LibraryBook struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Title      string     `gorm:"not null" json:"title"`
	Author     string     `json:"author"`
	ISBN       string     `gorm:"column:isbn;size:32" json:"isbn"`
	BorrowerID *uint      `gorm:"index" json:"borrower_id"`
	DueDate    *time.Time `gorm:"type:date" json:"due_date"`
	CreatedAt  time.Time  `json:"created_at"`

	Borrower *Student `gorm:"foreignKey:BorrowerID;constraint:OnDelete:SET NULL" json:"-"`
}

func (LibraryBook) TableName() string { return "library" }

// TransportRoute is a school bus route
type TransportRoute struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RouteName  string    `gorm:"not null" json:"route_name"`
	VehicleNo  string    `json:"vehicle_no"`
	DriverName string    `json:"driver_name"`
	Fee        float64   `gorm:"type:numeric(15,2)" json:"fee"`
	CreatedAt  time.Time `json:"created_at"`
}

func (TransportRoute) TableName() string { return "transport" }

// Notification is an in-app message for a user
type Notification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	Title     string     `gorm:"not null" json:"title"`
	Message   string     `gorm:"not null" json:"message"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`

	User *User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Notification) TableName() string { return "notifications" }
