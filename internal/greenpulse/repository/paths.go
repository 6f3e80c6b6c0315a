package repository

import (
	"fmt"
	"strings"

	"greenpulse/internal/greenpulse/models"
)

// 集合名称
const (
	UsersCollection         = "users"
	EnergyRecordsCollection = "energyRecords"
	UsageRecordsCollection  = "usageRecords"
	DonationCollection      = "donation"
	TotalCreditsCollection  = "totalCredits"
	CommunityGoalCollection = "communityGoal"
	CommunityGoalDocument   = "current"
)

// EnergyRecordsPath users/{uid}/energyRecords
func EnergyRecordsPath(userID string) []string {
	return []string{UsersCollection, userID, EnergyRecordsCollection}
}

// UsageRecordsPath users/{uid}/usageRecords
func UsageRecordsPath(userID string) []string {
	return []string{UsersCollection, userID, UsageRecordsCollection}
}

// DonationsPath 顶层捐赠集合
func DonationsPath() []string {
	return []string{DonationCollection}
}

// DonationPath donation/{id}
func DonationPath(id string) []string {
	return []string{DonationCollection, id}
}

// TotalCreditsPath totalCredits/{uid}
func TotalCreditsPath(userID string) []string {
	return []string{TotalCreditsCollection, userID}
}

// CommunityGoalPath communityGoal/current
func CommunityGoalPath() []string {
	return []string{CommunityGoalCollection, CommunityGoalDocument}
}

// ValidateCollectionPath 集合路径长度为奇数且各段非空
func ValidateCollectionPath(path []string) error {
	if len(path)%2 != 1 {
		return fmt.Errorf("%w: collection path needs an odd number of segments: %q", ErrInvalidPath, strings.Join(path, "/"))
	}
	return validateSegments(path)
}

// ValidateDocumentPath 文档路径长度为偶数且各段非空
func ValidateDocumentPath(path []string) error {
	if len(path) == 0 || len(path)%2 != 0 {
		return fmt.Errorf("%w: document path needs an even number of segments: %q", ErrInvalidPath, strings.Join(path, "/"))
	}
	return validateSegments(path)
}

// ValidateOps 写入前校验所有操作
func ValidateOps(ops []models.WriteOp) error {
	if len(ops) == 0 {
		return fmt.Errorf("%w: empty write batch", ErrInvalidPath)
	}
	for i, op := range ops {
		if err := ValidateDocumentPath(op.Path); err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
		switch op.Kind {
		case models.OpCreate:
		case models.OpIncrement:
			if len(op.Increments) == 0 {
				return fmt.Errorf("%w: op %d increments nothing", ErrInvalidPath, i)
			}
		default:
			return fmt.Errorf("%w: op %d has unknown kind %q", ErrInvalidPath, i, op.Kind)
		}
	}
	return nil
}

// JoinPath 以 / 连接路径
func JoinPath(path []string) string {
	return strings.Join(path, "/")
}

func validateSegments(path []string) error {
	for _, segment := range path {
		if strings.TrimSpace(segment) == "" || strings.Contains(segment, "/") {
			return fmt.Errorf("%w: bad segment in %q", ErrInvalidPath, strings.Join(path, "/"))
		}
	}
	return nil
}
