// Package domain defines the persistence models for the catalog: accounts,
// categories, genres, titles, reviews and comments. These types are mapped
// with GORM and shared by the repository and service layers.
//
// Rows are hard-deleted. Cascades are declared as foreign key constraints
// and are also performed explicitly by the services, so behavior does not
// depend on the SQLite foreign_keys pragma being active on every pooled
// connection.
package domain

import (
	"time"
)

// User is an account. Accounts are created on the first confirmation code
// request and are identified by a UUID.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Username: unique handle; defaults to the email on self sign-up.
//   - Email: unique, stored lower-cased.
//   - Role: user, moderator or admin.
//   - IsStaff: superuser flag; counts as admin regardless of Role.
//   - IsActive: inactive accounts cannot exchange codes or authenticate.
//   - ConfirmationCode: the single live one-time code; empty once consumed.
type User struct {
	ID               string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Username         string    `json:"username"   gorm:"type:varchar(150);not null;uniqueIndex:ux_users_username"`
	Email            string    `json:"email"      gorm:"type:varchar(40);not null;uniqueIndex:ux_users_email"`
	FirstName        string    `json:"first_name" gorm:"type:varchar(150);not null;default:''"`
	LastName         string    `json:"last_name"  gorm:"type:varchar(150);not null;default:''"`
	Bio              string    `json:"bio"        gorm:"type:varchar(500);not null;default:''"`
	Role             Role      `json:"role"       gorm:"type:varchar(16);not null;check:chk_users_role,role IN ('user','moderator','admin')"`
	IsStaff          bool      `json:"-"          gorm:"not null"`
	IsActive         bool      `json:"-"          gorm:"not null"`
	ConfirmationCode string    `json:"-"          gorm:"type:varchar(36);not null;default:''"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Category is a flat classification of titles (book, film, ...).
type Category struct {
	ID   int64  `json:"-"    gorm:"primaryKey;autoIncrement"`
	Name string `json:"name" gorm:"type:varchar(20);not null;index"`
	Slug string `json:"slug" gorm:"type:varchar(20);not null;uniqueIndex:ux_categories_slug"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string { return "categories" }

// Genre is a tag; a title can carry many genres.
type Genre struct {
	ID   int64  `json:"-"    gorm:"primaryKey;autoIncrement"`
	Name string `json:"name" gorm:"type:varchar(20);not null;index"`
	Slug string `json:"slug" gorm:"type:varchar(20);not null;uniqueIndex:ux_genres_slug"`
}

// TableName returns the database table name for Genre.
func (Genre) TableName() string { return "genres" }

// Title is a cataloged work. Its rating is derived from reviews on every
// read and is not a column.
//
// Fields:
//   - CategoryID: optional; set to NULL when the category is deleted.
//   - Genres: many-to-many through title_genres; rows are detached when
//     either side is deleted.
type Title struct {
	ID          int64     `json:"id"          gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"name"        gorm:"type:varchar(100);not null;index"`
	Year        int       `json:"year"        gorm:"not null;index;check:chk_titles_year,year BETWEEN 0 AND 32767"`
	Description *string   `json:"description" gorm:"type:text"`
	CategoryID  *int64    `json:"-"           gorm:"index"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`

	Category *Category `json:"category" gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Genres   []Genre   `json:"genre"    gorm:"many2many:title_genres;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Title.
func (Title) TableName() string { return "titles" }

// Review is one author's scored opinion on one title. The pair
// (title_id, author_id) is unique.
type Review struct {
	ID        int64     `json:"id"       gorm:"primaryKey;autoIncrement"`
	TitleID   int64     `json:"-"        gorm:"not null;uniqueIndex:ux_review_title_author,priority:1"`
	AuthorID  string    `json:"-"        gorm:"type:char(36);not null;index;uniqueIndex:ux_review_title_author,priority:2"`
	Text      string    `json:"text"     gorm:"type:text;not null"`
	Score     int       `json:"score"    gorm:"not null;check:chk_reviews_score,score BETWEEN 0 AND 10"`
	CreatedAt time.Time `json:"pub_date" gorm:"index"`
	UpdatedAt time.Time `json:"-"`

	Title  Title `json:"-" gorm:"foreignKey:TitleID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Author User  `json:"-" gorm:"foreignKey:AuthorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Review.
func (Review) TableName() string { return "reviews" }

// OwnerID returns the id of the review's author.
func (r Review) OwnerID() string { return r.AuthorID }

// Comment is a reply to a review.
type Comment struct {
	ID        int64     `json:"id"       gorm:"primaryKey;autoIncrement"`
	ReviewID  int64     `json:"-"        gorm:"not null;index:idx_review_comments,priority:1"`
	AuthorID  string    `json:"-"        gorm:"type:char(36);not null;index"`
	Text      string    `json:"text"     gorm:"type:text;not null"`
	CreatedAt time.Time `json:"pub_date" gorm:"index:idx_review_comments,priority:2"`
	UpdatedAt time.Time `json:"-"`

	Review Review `json:"-" gorm:"foreignKey:ReviewID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Author User   `json:"-" gorm:"foreignKey:AuthorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Comment.
func (Comment) TableName() string { return "comments" }

// OwnerID returns the id of the comment's author.
func (c Comment) OwnerID() string { return c.AuthorID }
