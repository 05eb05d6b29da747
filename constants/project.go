package constants

const (
	ProjectStatusActive   = "active"
	ProjectStatusArchived = "archived"
)

func ValidProjectStatus(s string) bool {
	return s == ProjectStatusActive || s == ProjectStatusArchived
}
