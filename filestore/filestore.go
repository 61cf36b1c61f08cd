package filestore

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/harishgarg/procflow/model"
	"github.com/harishgarg/procflow/util"
	"github.com/peterbourgon/diskv/v3"
)

// FileMeta describes an uploaded attachment and where it belongs in a
// process instance.
type FileMeta struct {
	Id          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	InstanceId  string    `json:"instanceId"`
	ActivityId  string    `json:"activityId"`
	FieldName   string    `json:"fieldName"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// FileStore keeps uploaded attachments on disk in a diskv bucket,
// content and metadata under separate suffixed keys.
type FileStore struct {
	dv     *diskv.Diskv
	encDec *util.JsonEncDec[FileMeta]
}

func New(basePath string) *FileStore {
	return &FileStore{
		dv: diskv.New(diskv.Options{
			BasePath:     filepath.Join(basePath, "files"),
			Transform:    func(s string) []string { return []string{} },
			CacheSizeMax: 1024 * 1024,
		}),
		encDec: util.NewJsonEncoderDecoder[FileMeta](),
	}
}

// Save stores the content and its metadata, assigning a fresh file id.
func (fs *FileStore) Save(meta FileMeta, content []byte) (*FileMeta, error) {
	meta.Id = uuid.New().String()
	meta.Size = int64(len(content))
	meta.UploadedAt = time.Now()
	if err := fs.dv.Write(meta.Id, content); err != nil {
		return nil, model.StorageLayerError{Message: err.Error()}
	}
	data, err := fs.encDec.Encode(meta)
	if err != nil {
		return nil, err
	}
	if err := fs.dv.Write(meta.Id+".meta", data); err != nil {
		return nil, model.StorageLayerError{Message: err.Error()}
	}
	return &meta, nil
}

// Get returns the metadata and content for a stored file id.
func (fs *FileStore) Get(id string) (*FileMeta, []byte, error) {
	data, err := fs.dv.Read(id + ".meta")
	if err != nil {
		return nil, nil, model.StorageLayerError{Message: err.Error()}
	}
	meta, err := fs.encDec.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	content, err := fs.dv.Read(id)
	if err != nil {
		return nil, nil, model.StorageLayerError{Message: err.Error()}
	}
	return meta, content, nil
}

// Delete removes a stored file and its metadata.
func (fs *FileStore) Delete(id string) error {
	if err := fs.dv.Erase(id + ".meta"); err != nil {
		return model.StorageLayerError{Message: err.Error()}
	}
	if err := fs.dv.Erase(id); err != nil {
		return model.StorageLayerError{Message: err.Error()}
	}
	return nil
}
