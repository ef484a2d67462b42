package parking

import (
	"strings"

	"github.com/cockroachdb/errors"
)

type VehicleClass int

const (
	Small VehicleClass = iota + 1
	Medium
	Large
)

type CustomerClass int

const (
	RegularCustomer CustomerClass = iota + 1
	VIPCustomer
)

type Section int

const (
	RegularSection Section = iota + 1
	EVSection
	VIPSection
)

var (
	VehicleClasses  = [...]VehicleClass{Small, Medium, Large}
	CustomerClasses = [...]CustomerClass{RegularCustomer, VIPCustomer}
	Sections        = [...]Section{RegularSection, EVSection, VIPSection}
)

// Display tables are indexed by variant and sized from the variant lists.
var (
	vehicleClassNames = [len(VehicleClasses) + 1]string{
		Small:  "Small",
		Medium: "Medium",
		Large:  "Large",
	}
	vehicleClassCodes = [len(VehicleClasses) + 1]string{
		Small:  "S",
		Medium: "M",
		Large:  "L",
	}
	customerClassNames = [len(CustomerClasses) + 1]string{
		RegularCustomer: "Regular",
		VIPCustomer:     "VIP",
	}
	sectionNames = [len(Sections) + 1]string{
		RegularSection: "Regular",
		EVSection:      "EV",
		VIPSection:     "VIP",
	}
	sectionCodes = [len(Sections) + 1]string{
		RegularSection: "REG",
		EVSection:      "EV",
		VIPSection:     "VIP",
	}
)

func (c VehicleClass) Valid() bool {
	return c >= Small && c <= Large
}

func (c VehicleClass) String() string {
	if !c.Valid() {
		return "Unknown"
	}
	return vehicleClassNames[c]
}

func (c VehicleClass) code() string {
	return vehicleClassCodes[c]
}

func (c CustomerClass) Valid() bool {
	return c >= RegularCustomer && c <= VIPCustomer
}

func (c CustomerClass) String() string {
	if !c.Valid() {
		return "Unknown"
	}
	return customerClassNames[c]
}

func (s Section) Valid() bool {
	return s >= RegularSection && s <= VIPSection
}

func (s Section) String() string {
	if !s.Valid() {
		return "Unknown"
	}
	return sectionNames[s]
}

func (s Section) code() string {
	return sectionCodes[s]
}

// ParseVehicleClass maps a case-insensitive name ("small", "MEDIUM") to its variant.
func ParseVehicleClass(s string) (VehicleClass, error) {
	for _, c := range VehicleClasses {
		if strings.EqualFold(strings.TrimSpace(s), vehicleClassNames[c]) {
			return c, nil
		}
	}
	return 0, errors.WithHint(
		errors.Wrapf(ErrUnknownClass, "vehicle class %q", s),
		"valid vehicle classes are small, medium and large")
}

func ParseCustomerClass(s string) (CustomerClass, error) {
	for _, c := range CustomerClasses {
		if strings.EqualFold(strings.TrimSpace(s), customerClassNames[c]) {
			return c, nil
		}
	}
	return 0, errors.WithHint(
		errors.Wrapf(ErrUnknownClass, "customer class %q", s),
		"valid customer classes are regular and vip")
}

func ParseSection(s string) (Section, error) {
	for _, sec := range Sections {
		if strings.EqualFold(strings.TrimSpace(s), sectionNames[sec]) {
			return sec, nil
		}
	}
	return 0, errors.WithHint(
		errors.Wrapf(ErrUnknownClass, "section %q", s),
		"valid sections are regular, ev and vip")
}
