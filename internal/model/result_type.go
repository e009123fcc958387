package model

import (
	"errors"
	"fmt"
)

// ErrUnknownResultType is returned for an x-edge-result-type tag outside the known set.
var ErrUnknownResultType = errors.New("unknown edge result type")

// ResultType is the x-edge-result-type classification of a request.
type ResultType uint8

const (
	ResultHit ResultType = iota
	ResultRefreshHit
	ResultOriginShieldHit
	ResultMiss
	ResultLimitExceeded
	ResultCapacityExceeded
	ResultError
	ResultRedirect
)

// ResultTypes lists every known classification in declaration order.
var ResultTypes = []ResultType{
	ResultHit,
	ResultRefreshHit,
	ResultOriginShieldHit,
	ResultMiss,
	ResultLimitExceeded,
	ResultCapacityExceeded,
	ResultError,
	ResultRedirect,
}

// ParseResultType matches tag exactly against the known classification tags.
func ParseResultType(tag string) (ResultType, error) {
	switch tag {
	case "Hit":
		return ResultHit, nil
	case "RefreshHit":
		return ResultRefreshHit, nil
	case "OriginShieldHit":
		return ResultOriginShieldHit, nil
	case "Miss":
		return ResultMiss, nil
	case "LimitExceeded":
		return ResultLimitExceeded, nil
	case "CapacityExceeded":
		return ResultCapacityExceeded, nil
	case "Error":
		return ResultError, nil
	case "Redirect":
		return ResultRedirect, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownResultType, tag)
	}
}

func (t ResultType) String() string {
	switch t {
	case ResultHit:
		return "Hit"
	case ResultRefreshHit:
		return "RefreshHit"
	case ResultOriginShieldHit:
		return "OriginShieldHit"
	case ResultMiss:
		return "Miss"
	case ResultLimitExceeded:
		return "LimitExceeded"
	case ResultCapacityExceeded:
		return "CapacityExceeded"
	case ResultError:
		return "Error"
	case ResultRedirect:
		return "Redirect"
	default:
		return fmt.Sprintf("ResultType(%d)", uint8(t))
	}
}
