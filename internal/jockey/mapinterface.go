package jockey

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/banshee-data/lj-costmap/internal/place"
)

// Message types of the two descriptor interfaces.
const (
	PlaceProfileType = "lama_msgs/PlaceProfile"
	CrossingType     = "lama_msgs/Crossing"
)

// InterfaceSpec asks the map for a named descriptor interface.
type InterfaceSpec struct {
	Name        string `json:"name"`
	MessageType string `json:"message_type"`
	Getter      bool   `json:"getter"`
	Setter      bool   `json:"setter"`
}

// MapService is the subset of the map that the jockey needs. Descriptor
// payloads are opaque bytes to the map.
//
// GetDescriptor must return an error matching ErrUnknownVertex when the
// vertex has no descriptor under the interface.
type MapService interface {
	AddInterface(ctx context.Context, spec InterfaceSpec) (string, error)
	SetDescriptor(ctx context.Context, iface string, vertex place.VertexID, payload []byte) (int64, error)
	GetDescriptor(ctx context.Context, iface string, vertex place.VertexID) (int64, []byte, error)
}

// MapInterfaceClient reads and writes the jockey's descriptors through the
// map's named interfaces.
type MapInterfaceClient struct {
	svc MapService

	mu           sync.RWMutex
	profileIface string
	crossIface   string
	registered   bool
}

// NewMapInterfaceClient creates a client for the given interface names.
func NewMapInterfaceClient(svc MapService, placeProfileName, crossingName string) *MapInterfaceClient {
	return &MapInterfaceClient{
		svc:          svc,
		profileIface: placeProfileName,
		crossIface:   crossingName,
	}
}

// RegisterInterfaces registers the place-profile getter and setter and the
// crossing setter. A rejection wraps ErrRegistrationRejected.
func (c *MapInterfaceClient) RegisterInterfaces(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	specs := []InterfaceSpec{
		{Name: c.profileIface, MessageType: PlaceProfileType, Getter: true},
		{Name: c.profileIface, MessageType: PlaceProfileType, Setter: true},
		{Name: c.crossIface, MessageType: CrossingType, Setter: true},
	}
	names := make([]string, len(specs))
	for i, spec := range specs {
		name, err := c.svc.AddInterface(ctx, spec)
		if err != nil {
			return fmt.Errorf("%w: %s (%s): %v", ErrRegistrationRejected, spec.Name, spec.MessageType, err)
		}
		if name == "" {
			name = spec.Name
		}
		names[i] = name
	}
	if names[0] != names[1] {
		return fmt.Errorf("%w: place profile getter %q and setter %q differ", ErrRegistrationRejected, names[0], names[1])
	}
	c.profileIface = names[0]
	c.crossIface = names[2]
	c.registered = true
	return nil
}

// PlaceProfileInterface returns the effective place-profile interface name.
func (c *MapInterfaceClient) PlaceProfileInterface() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profileIface
}

// CrossingInterface returns the effective crossing interface name.
func (c *MapInterfaceClient) CrossingInterface() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.crossIface
}

func (c *MapInterfaceClient) ready() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.registered {
		return newError(ServiceUnavailable, nil, "map interfaces are not registered")
	}
	return nil
}

// SetPlaceProfile stores p for vertex.
func (c *MapInterfaceClient) SetPlaceProfile(ctx context.Context, vertex place.VertexID, p place.Profile) (place.DescriptorLink, error) {
	return c.set(ctx, c.PlaceProfileInterface(), vertex, p)
}

// SetCrossing stores cr for vertex.
func (c *MapInterfaceClient) SetCrossing(ctx context.Context, vertex place.VertexID, cr place.Crossing) (place.DescriptorLink, error) {
	return c.set(ctx, c.CrossingInterface(), vertex, cr)
}

func (c *MapInterfaceClient) set(ctx context.Context, iface string, vertex place.VertexID, v interface{}) (place.DescriptorLink, error) {
	if err := c.ready(); err != nil {
		return place.DescriptorLink{}, err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return place.DescriptorLink{}, newError(DescriptorBuildError, err, "encoding %s descriptor", iface)
	}
	id, err := c.svc.SetDescriptor(ctx, iface, vertex, payload)
	if err != nil {
		return place.DescriptorLink{}, newError(ServiceUnavailable, err, "storing %s for vertex %d", iface, vertex)
	}
	return place.DescriptorLink{Vertex: vertex, InterfaceName: iface, DescriptorID: id}, nil
}

// GetPlaceProfile fetches the stored profile of vertex. A vertex without one
// fails with UnknownVertex.
func (c *MapInterfaceClient) GetPlaceProfile(ctx context.Context, vertex place.VertexID) (place.Profile, place.DescriptorLink, error) {
	if err := c.ready(); err != nil {
		return place.Profile{}, place.DescriptorLink{}, err
	}
	iface := c.PlaceProfileInterface()
	id, payload, err := c.svc.GetDescriptor(ctx, iface, vertex)
	if err != nil {
		if KindOf(err) == UnknownVertex {
			return place.Profile{}, place.DescriptorLink{}, newError(UnknownVertex, err, "vertex %d has no %s", vertex, iface)
		}
		return place.Profile{}, place.DescriptorLink{}, newError(ServiceUnavailable, err, "fetching %s of vertex %d", iface, vertex)
	}
	var p place.Profile
	if err := json.Unmarshal(payload, &p); err != nil {
		return place.Profile{}, place.DescriptorLink{}, newError(ServiceUnavailable, err, "map returned an unreadable %s for vertex %d", iface, vertex)
	}
	return p, place.DescriptorLink{Vertex: vertex, InterfaceName: iface, DescriptorID: id}, nil
}

// Persist stores the profile, then the crossing. Nothing is rolled back on
// failure; the returned links cover every descriptor that was committed.
func (c *MapInterfaceClient) Persist(ctx context.Context, vertex place.VertexID, p place.Profile, cr place.Crossing) ([]place.DescriptorLink, error) {
	var links []place.DescriptorLink
	link, err := c.SetPlaceProfile(ctx, vertex, p)
	if err != nil {
		return links, err
	}
	links = append(links, link)
	link, err = c.SetCrossing(ctx, vertex, cr)
	if err != nil {
		return links, err
	}
	return append(links, link), nil
}
