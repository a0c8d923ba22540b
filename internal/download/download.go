// Package download implements "save as" by handing the user a copy of the
// project file. Nothing is stored on the user's behalf.
package download

import (
	"context"
	"log/slog"

	"projectstore/internal/modal"
	"projectstore/internal/project"
	"projectstore/internal/storage"
)

// InternalName identifies the download provider.
const InternalName = "DownloadFile"

// NewStorageProvider describes the download backend.
func NewStorageProvider(sink Sink) storage.Provider {
	return storage.Provider{
		InternalName:       InternalName,
		Name:               "Download a copy",
		HiddenInOpenDialog: true,
		CreateOperations: func(deps storage.Dependencies) storage.Operations {
			return &Operations{sink: sink, modal: deps.Modal}
		},
	}
}

// Operations is the download backend. Only save-as is supported.
type Operations struct {
	storage.Unsupported
	sink  Sink
	modal modal.Host
}

var capabilities = storage.NewCapabilitySet(
	storage.CapabilitySaveAs,
	storage.CapabilityChooseSaveAsLocation,
)

func (o *Operations) Supports(c storage.Capability) bool {
	return capabilities.Supports(c)
}

// ChooseSaveProjectAsLocation needs no input: the file is named after the project.
func (o *Operations) ChooseSaveProjectAsLocation(ctx context.Context, p project.Project, fm *storage.FileMetadata) (*storage.SaveAsLocation, error) {
	return &storage.SaveAsLocation{Name: p.Name()}, nil
}

// SaveProjectAs offers the serialized project and tells the user where to
// get it. The result is never saved; its metadata names the download, which
// no later SaveProject can write to.
func (o *Operations) SaveProjectAs(ctx context.Context, p project.Project, location *storage.SaveAsLocation, opts storage.SaveAsOptions) (*storage.SaveResult, error) {
	data, err := p.Serialize()
	if err != nil {
		return nil, err
	}

	name := p.Name()
	if location != nil && location.Name != "" {
		name = location.Name
	}
	offer, err := o.sink.Offer(ctx, name+".json", data)
	if err != nil {
		return nil, err
	}

	if o.modal != nil {
		_, err := o.modal.Present(ctx, modal.Request{
			Kind:         modal.KindDownloadReady,
			ProviderName: InternalName,
			Title:        offer.Filename,
			URL:          offer.URL,
		})
		if err != nil {
			slog.Debug("Download notice not shown", "id", offer.ID, "error", err)
		}
	}

	return &storage.SaveResult{
		WasSaved:     false,
		FileMetadata: &storage.FileMetadata{FileIdentifier: offer.ID},
	}, nil
}
