package crawler

import (
	"fmt"
	"strings"
)

// Subsystem names the portal family an operation belongs to.
type Subsystem string

// SubsystemWebs is the WEBS contracting portal.
const SubsystemWebs Subsystem = "Webs"

// Operation is a tagged crawl operation, written as "Subsystem:Name".
type Operation struct {
	Subsystem Subsystem
	Name      string
}

// Known operations.
var (
	WebsStartCrawl                  = Operation{Subsystem: SubsystemWebs, Name: "StartCrawl"}
	WebsFetchOpportunityListingPage = Operation{Subsystem: SubsystemWebs, Name: "FetchOpportunityListingPage"}
	WebsFetchOpportunityDetailPage  = Operation{Subsystem: SubsystemWebs, Name: "FetchOpportunityDetailPage"}
)

var knownOperations = map[Subsystem]map[string]Operation{
	SubsystemWebs: {
		WebsStartCrawl.Name:                  WebsStartCrawl,
		WebsFetchOpportunityListingPage.Name: WebsFetchOpportunityListingPage,
		WebsFetchOpportunityDetailPage.Name:  WebsFetchOpportunityDetailPage,
	},
}

// ParseOperation parses a "Subsystem:Name" tag. Unknown subsystems and names
// are errors wrapping ErrOperationParse.
func ParseOperation(tag string) (Operation, error) {
	parts := strings.Split(tag, ":")
	if len(parts) != 2 {
		return Operation{}, fmt.Errorf("%w: invalid operation format %q", ErrOperationParse, tag)
	}
	names, ok := knownOperations[Subsystem(parts[0])]
	if !ok {
		return Operation{}, fmt.Errorf("%w: unknown subsystem %q", ErrOperationParse, parts[0])
	}
	op, ok := names[parts[1]]
	if !ok {
		return Operation{}, fmt.Errorf("%w: unknown %s operation %q", ErrOperationParse, parts[0], parts[1])
	}
	return op, nil
}

func (o Operation) String() string {
	return string(o.Subsystem) + ":" + o.Name
}

// IsZero reports whether the operation is unset.
func (o Operation) IsZero() bool {
	return o.Subsystem == "" && o.Name == ""
}

// MarshalText implements encoding.TextMarshaler.
func (o Operation) MarshalText() ([]byte, error) {
	if o.IsZero() {
		return nil, fmt.Errorf("%w: empty operation", ErrOperationParse)
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Operation) UnmarshalText(text []byte) error {
	op, err := ParseOperation(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}
