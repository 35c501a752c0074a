package fitbit

import (
	"strings"
	"time"
)

// ActivityLog is one entry of the activity log list endpoint.
type ActivityLog struct {
	LogID          int64     `json:"logId"`
	ActivityName   string    `json:"activityName"`
	ActivityTypeID int       `json:"activityTypeId"`
	StartTime      time.Time `json:"startTime"`
	TCXLink        string    `json:"tcxLink"`
}

type activityLogList struct {
	Activities []ActivityLog `json:"activities"`
}

// ActivityType is a leaf activity in the provider's category taxonomy.
type ActivityType struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Category is a node of the activity taxonomy. Subcategories nest one level
// deep.
type Category struct {
	ID            int            `json:"id"`
	Name          string         `json:"name"`
	Activities    []ActivityType `json:"activities"`
	SubCategories []Category     `json:"subCategories"`
}

type categoryList struct {
	Categories []Category `json:"categories"`
}

// Subscription is a webhook registration on the activities collection.
type Subscription struct {
	CollectionType string `json:"collectionType"`
	OwnerID        string `json:"ownerId"`
	OwnerType      string `json:"ownerType"`
	SubscriberID   string `json:"subscriberId"`
	SubscriptionID string `json:"subscriptionId"`
}

type subscriptionList struct {
	APISubscriptions []Subscription `json:"apiSubscriptions"`
}

// Day is a calendar day as serialized in webhook notifications
// ("2006-01-02", no time zone).
type Day struct {
	time.Time
}

// UnmarshalJSON parses the provider's date-only format.
func (d *Day) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// UpdateNotification is one element of the webhook notification payload.
type UpdateNotification struct {
	CollectionType string `json:"collectionType"`
	Date           Day    `json:"date"`
	OwnerID        string `json:"ownerId"`
	OwnerType      string `json:"ownerType"`
	SubscriptionID string `json:"subscriptionId"`
}

// CollectionActivities is the collection type of activity updates, the only
// collection this integration subscribes to.
const CollectionActivities = "activities"
