package sqlite

import (
	"database/sql"
	"time"

	"github.com/harishgarg/procflow/metadata"
	"github.com/harishgarg/procflow/model"
	"github.com/harishgarg/procflow/persistence"
	"github.com/harishgarg/procflow/util"

	_ "modernc.org/sqlite"
)

var _ persistence.InstanceStorage = new(Storage)
var _ metadata.MetadataStorage = new(Storage)

// Storage persists definitions and instances in a SQLite database using the
// pure-Go modernc driver. Snapshots are stored as JSON blobs next to the
// queryable columns.
type Storage struct {
	db        *sql.DB
	defCodec  util.EncoderDecoder[model.ProcessDefinition]
	instCodec util.EncoderDecoder[model.ProcessInstance]
}

func NewStorage(path string) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Storage{
		db:        db,
		defCodec:  util.NewJsonEncoderDecoder[model.ProcessDefinition](),
		instCodec: util.NewJsonEncoderDecoder[model.ProcessInstance](),
	}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS process_definitions (
			id TEXT PRIMARY KEY,
			body BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS process_instances (
			id TEXT PRIMARY KEY,
			process_id TEXT NOT NULL,
			state TEXT NOT NULL,
			completed_at TEXT,
			body BLOB NOT NULL
		);`,
	)
	return err
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) SaveProcessDefinition(def model.ProcessDefinition) error {
	body, err := s.defCodec.Encode(def)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO process_definitions (id, body) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body`,
		def.Id, body,
	)
	if err != nil {
		return model.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *Storage) DeleteProcessDefinition(id string) error {
	res, err := s.db.Exec(`DELETE FROM process_definitions WHERE id = ?`, id)
	if err != nil {
		return model.StorageLayerError{Message: err.Error()}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.StorageLayerError{Message: "process definition " + id + " not found"}
	}
	return nil
}

func (s *Storage) GetProcessDefinition(id string) (*model.ProcessDefinition, error) {
	var body []byte
	err := s.db.QueryRow(`SELECT body FROM process_definitions WHERE id = ?`, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, model.StorageLayerError{Message: "process definition " + id + " not found"}
	}
	if err != nil {
		return nil, model.StorageLayerError{Message: err.Error()}
	}
	return s.defCodec.Decode(body)
}

func (s *Storage) GetAllProcessDefinitions() ([]model.ProcessDefinition, error) {
	rows, err := s.db.Query(`SELECT body FROM process_definitions`)
	if err != nil {
		return nil, model.StorageLayerError{Message: err.Error()}
	}
	defer rows.Close()
	var out []model.ProcessDefinition
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		def, err := s.defCodec.Decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, *def)
	}
	return out, rows.Err()
}

func (s *Storage) ExistsProcessDefinition(id string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM process_definitions WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, model.StorageLayerError{Message: err.Error()}
	}
	return true, nil
}

func (s *Storage) SaveProcessInstance(inst model.ProcessInstance) error {
	body, err := s.instCodec.Encode(inst)
	if err != nil {
		return err
	}
	var completedAt any
	if inst.CompletedAt != nil {
		completedAt = inst.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err = s.db.Exec(`
		INSERT INTO process_instances (id, process_id, state, completed_at, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			process_id = excluded.process_id,
			state = excluded.state,
			completed_at = excluded.completed_at,
			body = excluded.body`,
		inst.Id, inst.ProcessId, string(inst.State), completedAt, body,
	)
	if err != nil {
		return model.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *Storage) GetProcessInstance(id string) (*model.ProcessInstance, error) {
	var body []byte
	err := s.db.QueryRow(`SELECT body FROM process_instances WHERE id = ?`, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, model.InstanceNotFoundError{Id: id}
	}
	if err != nil {
		return nil, model.StorageLayerError{Message: err.Error()}
	}
	return s.instCodec.Decode(body)
}

func (s *Storage) DeleteProcessInstance(id string) error {
	res, err := s.db.Exec(`DELETE FROM process_instances WHERE id = ?`, id)
	if err != nil {
		return model.StorageLayerError{Message: err.Error()}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.InstanceNotFoundError{Id: id}
	}
	return nil
}

func (s *Storage) GetAllProcessInstances() ([]model.ProcessInstance, error) {
	return s.query(`SELECT body FROM process_instances`)
}

func (s *Storage) FindByState(state model.InstanceState) ([]model.ProcessInstance, error) {
	return s.query(`SELECT body FROM process_instances WHERE state = ?`, string(state))
}

func (s *Storage) FindByProcess(processId string) ([]model.ProcessInstance, error) {
	return s.query(`SELECT body FROM process_instances WHERE process_id = ?`, processId)
}

func (s *Storage) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM process_instances`).Scan(&n); err != nil {
		return 0, model.StorageLayerError{Message: err.Error()}
	}
	return n, nil
}

func (s *Storage) DeleteCompletedBefore(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`
		DELETE FROM process_instances
		WHERE state != ? AND completed_at IS NOT NULL AND completed_at < ?`,
		string(model.INSTANCE_RUNNING), cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, model.StorageLayerError{Message: err.Error()}
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Storage) query(q string, args ...any) ([]model.ProcessInstance, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, model.StorageLayerError{Message: err.Error()}
	}
	defer rows.Close()
	var out []model.ProcessInstance
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		inst, err := s.instCodec.Decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, *inst)
	}
	return out, rows.Err()
}
