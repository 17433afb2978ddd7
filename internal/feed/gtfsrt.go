// Package feed exports live vehicle positions as a GTFS-realtime feed.
package feed

import (
	"fmt"
	"strings"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"villagelink/internal/domain"
)

const gtfsRealtimeVersion = "2.0"

// Content types for the two encodings.
const (
	ContentTypeProtobuf = "application/x-protobuf"
	ContentTypeJSON     = "application/json"
)

// BuildVehiclePositions converts vehicle records into a full-dataset
// VehiclePositions feed.
func BuildVehiclePositions(vehicles []domain.VehicleState, now time.Time) *gtfsrtpb.FeedMessage {
	msg := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String(gtfsRealtimeVersion),
			Incrementality:      gtfsrtpb.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
		Entity: make([]*gtfsrtpb.FeedEntity, 0, len(vehicles)),
	}

	for _, v := range vehicles {
		msg.Entity = append(msg.Entity, &gtfsrtpb.FeedEntity{
			Id:      proto.String(v.OperatorID),
			Vehicle: vehiclePosition(v),
		})
	}
	return msg
}

func vehiclePosition(v domain.VehicleState) *gtfsrtpb.VehiclePosition {
	vp := &gtfsrtpb.VehiclePosition{
		Vehicle: &gtfsrtpb.VehicleDescriptor{
			Id:    proto.String(v.OperatorID),
			Label: proto.String(label(v)),
		},
		Position: &gtfsrtpb.Position{
			Latitude:  proto.Float32(float32(v.Location.Lat)),
			Longitude: proto.Float32(float32(v.Location.Lng)),
			Bearing:   proto.Float32(float32(v.Location.Heading)),
			Speed:     proto.Float32(float32(v.Location.SpeedKmh / 3.6)),
		},
		Timestamp: proto.Uint64(uint64(v.Location.Timestamp.Unix())),
	}

	if n := len(v.Path); n > 0 {
		vp.Trip = &gtfsrtpb.TripDescriptor{
			RouteId: proto.String(routeID(v.Path)),
		}
		vp.CurrentStopSequence = proto.Uint32(uint32(v.CurrentStopIndex))
		vp.StopId = proto.String(v.Path[v.CurrentStopIndex])
		status := gtfsrtpb.VehiclePosition_IN_TRANSIT_TO
		if v.NearestStop == v.Path[v.CurrentStopIndex] && v.Location.SpeedKmh == 0 {
			status = gtfsrtpb.VehiclePosition_STOPPED_AT
		}
		vp.CurrentStatus = status.Enum()
	}

	if v.Capacity > 0 {
		pct := v.Occupancy * 100 / v.Capacity
		vp.OccupancyPercentage = proto.Uint32(uint32(pct))
		vp.OccupancyStatus = occupancyStatus(pct).Enum()
	}
	return vp
}

func occupancyStatus(pct int) gtfsrtpb.VehiclePosition_OccupancyStatus {
	switch {
	case pct == 0:
		return gtfsrtpb.VehiclePosition_EMPTY
	case pct < 50:
		return gtfsrtpb.VehiclePosition_MANY_SEATS_AVAILABLE
	case pct < 90:
		return gtfsrtpb.VehiclePosition_FEW_SEATS_AVAILABLE
	case pct < 100:
		return gtfsrtpb.VehiclePosition_STANDING_ROOM_ONLY
	default:
		return gtfsrtpb.VehiclePosition_FULL
	}
}

func routeID(path []string) string {
	return strings.ToLower(path[0] + "-" + path[len(path)-1])
}

func label(v domain.VehicleState) string {
	if v.OperatorName != "" {
		return v.OperatorName
	}
	return v.OperatorID
}

// Encode serializes a feed as protobuf, or as JSON when format is "json".
func Encode(msg *gtfsrtpb.FeedMessage, format string) ([]byte, string, error) {
	switch format {
	case "", "pb", "protobuf":
		b, err := proto.Marshal(msg)
		if err != nil {
			return nil, "", fmt.Errorf("marshal feed: %w", err)
		}
		return b, ContentTypeProtobuf, nil
	case "json":
		b, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(msg)
		if err != nil {
			return nil, "", fmt.Errorf("marshal feed json: %w", err)
		}
		return b, ContentTypeJSON, nil
	default:
		return nil, "", fmt.Errorf("unsupported feed format %q", format)
	}
}
