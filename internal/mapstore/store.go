// Package mapstore is the reference map service: a sqlite key/value store of
// opaque descriptors attached to vertices under named interfaces.
package mapstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/lj-costmap/internal/monitoring"
	"github.com/banshee-data/lj-costmap/internal/place"
)

var (
	// ErrNotFound is returned when a vertex has no descriptor under an
	// interface.
	ErrNotFound = errors.New("descriptor not found")
	// ErrUnknownInterface is returned for operations on an interface that
	// was never added.
	ErrUnknownInterface = errors.New("unknown interface")
	// ErrTypeConflict is returned when an interface name is reused with a
	// different message type.
	ErrTypeConflict = errors.New("interface exists with a different message type")
	// ErrInvalidInterface is returned for an interface without a name or type.
	ErrInvalidInterface = errors.New("interface needs a name and a message type")
)

var logf = monitoring.Tagged("mapstore")

// Interface is a named descriptor interface.
type Interface struct {
	Name        string    `json:"name"`
	MessageType string    `json:"message_type"`
	Getter      bool      `json:"getter"`
	Setter      bool      `json:"setter"`
	Created     time.Time `json:"created"`
}

// Descriptor is one stored descriptor.
type Descriptor struct {
	ID        int64          `json:"id"`
	Interface string         `json:"interface"`
	Vertex    place.VertexID `json:"vertex"`
	Payload   []byte         `json:"payload"`
	Updated   time.Time      `json:"updated"`
}

// Store is a sqlite-backed map store.
type Store struct {
	*sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the database at path and applies all
// pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open map database: %w", err)
	}
	s := &Store{DB: db, path: path, now: time.Now}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	logf("opened %s", path)
	return s, nil
}

// dsn attaches the connection pragmas so that every pooled connection gets
// them, not only the first.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// AddInterface registers iface. Adding an existing name with the same
// message type merges the getter/setter flags; a different type fails with
// ErrTypeConflict.
func (s *Store) AddInterface(ctx context.Context, iface Interface) (Interface, error) {
	if iface.Name == "" || iface.MessageType == "" {
		return Interface{}, ErrInvalidInterface
	}
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return Interface{}, err
	}
	defer tx.Rollback()

	existing, err := getInterface(ctx, tx, iface.Name)
	switch {
	case errors.Is(err, ErrUnknownInterface):
		iface.Created = s.now()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO interfaces (name, message_type, getter, setter, created_unix_nanos) VALUES (?, ?, ?, ?, ?)`,
			iface.Name, iface.MessageType, iface.Getter, iface.Setter, iface.Created.UnixNano())
		if err != nil {
			return Interface{}, fmt.Errorf("insert interface %q: %w", iface.Name, err)
		}
		logf("added interface %s (%s)", iface.Name, iface.MessageType)
	case err != nil:
		return Interface{}, err
	case existing.MessageType != iface.MessageType:
		return Interface{}, fmt.Errorf("%w: %q is %s, not %s", ErrTypeConflict, iface.Name, existing.MessageType, iface.MessageType)
	default:
		existing.Getter = existing.Getter || iface.Getter
		existing.Setter = existing.Setter || iface.Setter
		_, err = tx.ExecContext(ctx, `UPDATE interfaces SET getter = ?, setter = ? WHERE name = ?`,
			existing.Getter, existing.Setter, existing.Name)
		if err != nil {
			return Interface{}, fmt.Errorf("update interface %q: %w", iface.Name, err)
		}
		iface = existing
	}
	if err := tx.Commit(); err != nil {
		return Interface{}, err
	}
	return iface, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getInterface(ctx context.Context, q queryer, name string) (Interface, error) {
	var (
		iface   Interface
		created int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT name, message_type, getter, setter, created_unix_nanos FROM interfaces WHERE name = ?`, name).
		Scan(&iface.Name, &iface.MessageType, &iface.Getter, &iface.Setter, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Interface{}, fmt.Errorf("%w: %q", ErrUnknownInterface, name)
	}
	if err != nil {
		return Interface{}, err
	}
	iface.Created = time.Unix(0, created)
	return iface, nil
}

// GetInterface returns the interface called name.
func (s *Store) GetInterface(ctx context.Context, name string) (Interface, error) {
	return getInterface(ctx, s.DB, name)
}

// Interfaces lists every interface ordered by name.
func (s *Store) Interfaces(ctx context.Context) ([]Interface, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT name, message_type, getter, setter, created_unix_nanos FROM interfaces ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Interface
	for rows.Next() {
		var (
			iface   Interface
			created int64
		)
		if err := rows.Scan(&iface.Name, &iface.MessageType, &iface.Getter, &iface.Setter, &created); err != nil {
			return nil, err
		}
		iface.Created = time.Unix(0, created)
		out = append(out, iface)
	}
	return out, rows.Err()
}

// SetDescriptor stores payload for vertex under iface. Overwriting keeps
// the descriptor id.
func (s *Store) SetDescriptor(ctx context.Context, iface string, vertex place.VertexID, payload []byte) (int64, error) {
	if _, err := s.GetInterface(ctx, iface); err != nil {
		return 0, err
	}
	if payload == nil {
		payload = []byte{}
	}
	var id int64
	err := s.QueryRowContext(ctx, `
		INSERT INTO descriptors (interface_name, vertex_id, payload, updated_unix_nanos)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (interface_name, vertex_id)
		DO UPDATE SET payload = excluded.payload, updated_unix_nanos = excluded.updated_unix_nanos
		RETURNING descriptor_id`,
		iface, int64(vertex), payload, s.now().UnixNano()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store descriptor %s[%d]: %w", iface, vertex, err)
	}
	return id, nil
}

// GetDescriptor returns the descriptor of vertex under iface.
func (s *Store) GetDescriptor(ctx context.Context, iface string, vertex place.VertexID) (Descriptor, error) {
	d := Descriptor{Interface: iface, Vertex: vertex}
	var updated int64
	err := s.QueryRowContext(ctx,
		`SELECT descriptor_id, payload, updated_unix_nanos FROM descriptors WHERE interface_name = ? AND vertex_id = ?`,
		iface, int64(vertex)).Scan(&d.ID, &d.Payload, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Descriptor{}, fmt.Errorf("%w: %s[%d]", ErrNotFound, iface, vertex)
	}
	if err != nil {
		return Descriptor{}, err
	}
	d.Updated = time.Unix(0, updated)
	return d, nil
}

// ListDescriptors returns every descriptor under iface ordered by vertex.
func (s *Store) ListDescriptors(ctx context.Context, iface string) ([]Descriptor, error) {
	if _, err := s.GetInterface(ctx, iface); err != nil {
		return nil, err
	}
	rows, err := s.QueryContext(ctx,
		`SELECT descriptor_id, vertex_id, payload, updated_unix_nanos FROM descriptors WHERE interface_name = ? ORDER BY vertex_id`,
		iface)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Descriptor
	for rows.Next() {
		var (
			d       = Descriptor{Interface: iface}
			vertex  int64
			updated int64
		)
		if err := rows.Scan(&d.ID, &vertex, &d.Payload, &updated); err != nil {
			return nil, err
		}
		d.Vertex = place.VertexID(vertex)
		d.Updated = time.Unix(0, updated)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Stats counts interfaces and descriptors.
func (s *Store) Stats(ctx context.Context) (interfaces, descriptors int, err error) {
	err = s.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM interfaces), (SELECT COUNT(*) FROM descriptors)`).
		Scan(&interfaces, &descriptors)
	return interfaces, descriptors, err
}
