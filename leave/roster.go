package leave

import (
	"crypto/subtle"
	"fmt"
	"strconv"
)

// =============================================================================
// ROSTER - Seed personnel and credential matching
// =============================================================================

// AdminSicilNo is the registry number of the team lead who approves leave.
const AdminSicilNo = "401017"

// seniorityBase turns a registry number into a seniority score: a lower
// registry number means a higher score.
const seniorityBase = 1000000

type personnel struct {
	name  string
	sicil string
}

var seedPersonnel = []personnel{
	{"Murat TOPCU", "401017"},
	{"Yılmaz Salih ONAN", "422482"},
	{"Emre AKÇAKAYA", "427658"},
	{"Hamza KÜÇÜKŞAHİNER", "428167"},
	{"Barış YANBAŞ", "469940"},
	{"Alper KÜTÜK", "534287"},
	{"Tolga KARABOĞA", "482522"},
	{"Mustafa GÖKÇE", "521290"},
	{"Mertcan İLHAN", "471060"},
	{"Eray İhsan ÇALIŞKAN", "501994"},
	{"Mehmet Ali DÜNDAR", "436413"},
	{"Yunus Emre AKSÜT", "502205"},
	{"Ahmet Selim KUMLU", "491372"},
	{"Ali BEZİRGAN", "521379"},
	{"Mehmet TEMİZKAN", "523356"},
	{"Furkan Tayyip FURTANA", "529141"},
	{"Mehmet DEMİRTAŞ", "512992"},
	{"Erdem ÜNAL", "534818"},
	{"Mehmet KILIÇKIRAN", "498991"},
	{"Tolga ÖNEŞ", "535727"},
	{"Hakan KAZLI", "533638"},
	{"Murat ÖZKAN", "537170"},
	{"Mustafa KARINLI", "539876"},
	{"Mehmet Oğuz KÖKPINAR", "436467"},
}

// SeniorityFromSicil derives the seed seniority score of a registry number.
func SeniorityFromSicil(sicil string) (int, error) {
	n, err := strconv.Atoi(sicil)
	if err != nil {
		return 0, fmt.Errorf("registry number %q is not numeric: %w", sicil, err)
	}
	return seniorityBase - n, nil
}

// DefaultRoster returns the seed users. Every user gets entitlement days;
// a non-positive value falls back to AnnualLeaveEntitlement.
func DefaultRoster(entitlement int) []User {
	if entitlement <= 0 {
		entitlement = AnnualLeaveEntitlement
	}
	users := make([]User, 0, len(seedPersonnel))
	for i, p := range seedPersonnel {
		seniority, _ := SeniorityFromSicil(p.sicil)
		role := RoleEmployee
		if p.sicil == AdminSicilNo {
			role = RoleAdmin
		}
		users = append(users, User{
			ID:                    fmt.Sprintf("user-%d", i+1),
			SicilNo:               p.sicil,
			Name:                  p.name,
			Password:              p.sicil + "+",
			YearsOfService:        seniority,
			Role:                  role,
			TotalLeaveEntitlement: entitlement,
			UsedLeaveDays:         0,
		})
	}
	return users
}

// Authenticate finds the user whose registry number and secret both match
// exactly. Users without a secret (demo staff) cannot log in.
func Authenticate(users []User, sicil, secret string) (User, error) {
	if secret == "" {
		return User{}, ErrInvalidCredentials
	}
	for _, u := range users {
		if u.SicilNo != sicil {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(u.Password), []byte(secret)) == 1 {
			return u, nil
		}
		return User{}, ErrInvalidCredentials
	}
	return User{}, ErrInvalidCredentials
}
