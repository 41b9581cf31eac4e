package semantic

import (
	"math"
	"strconv"
	"strings"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/physai/bookrag/engine/domain"
)

func decodePayload(pointID string, payload map[string]*pb.Value) domain.ContentChunk {
	c := domain.ContentChunk{
		ID:           stringValue(payload[KeyChunkID]),
		Chapter:      intValue(payload[KeyChapter]),
		ChapterTitle: stringValue(payload[KeyChapterTitle]),
		Section:      stringValue(payload[KeySection]),
		Module:       stringValue(payload[KeyModule]),
		Text:         stringValue(payload[KeyContent]),
	}
	if c.ID == "" {
		c.ID = pointID
	}
	return c
}

// intValue accepts chapter numbers stored as integers, doubles or strings.
func intValue(v *pb.Value) int {
	if v == nil {
		return 0
	}
	switch k := v.GetKind().(type) {
	case *pb.Value_IntegerValue:
		return int(k.IntegerValue)
	case *pb.Value_DoubleValue:
		return int(math.Round(k.DoubleValue))
	case *pb.Value_StringValue:
		return parseChapter(k.StringValue)
	default:
		return 0
	}
}

func stringValue(v *pb.Value) string {
	if v == nil {
		return ""
	}
	switch k := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return k.StringValue
	case *pb.Value_IntegerValue:
		return strconv.FormatInt(k.IntegerValue, 10)
	case *pb.Value_DoubleValue:
		return strconv.FormatFloat(k.DoubleValue, 'f', -1, 64)
	default:
		return ""
	}
}

// parseChapter reads "2", "ch_002" or "Chapter 2"; anything else is 0.
func parseChapter(s string) int {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, "chapter")
	s = strings.TrimPrefix(s, "ch_")
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func pointIDString(id *pb.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}
