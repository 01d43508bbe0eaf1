package host

import (
	"context"
	"encoding/json"
	"fmt"

	"cdfplan/internal/delivery"
	appLog "cdfplan/internal/log"
	"cdfplan/internal/model"
	"cdfplan/internal/ports"
)

const printFilename = "planning.pdf"

func (h *Host) registerChannels() {
	h.registry.Register(ports.SaveBenevoleSelection, h.saveSelection(model.KeySelectedMissions))
	h.registry.Register(ports.SaveTeamsSelection, h.saveSelection(model.KeySelectedTeams))
	h.registry.Register(ports.ExportCalendar, h.exportCalendar)
	if h.opts.Printer != nil {
		h.registry.Register(ports.Print, h.print)
	}
}

func (h *Host) saveSelection(key string) ports.Handler {
	return func(ctx context.Context, payload json.RawMessage) (*ports.Reply, error) {
		var sel model.Selection
		if err := ports.Decode(payload, &sel); err != nil {
			return nil, err
		}
		if err := h.opts.Store.Save(ctx, key, sel); err != nil {
			return nil, fmt.Errorf("host: saving %s: %w", key, err)
		}
		appLog.Debug("selection saved", "key", key, "count", len(sel))
		return nil, nil
	}
}

func (h *Host) exportCalendar(_ context.Context, payload json.RawMessage) (*ports.Reply, error) {
	var events []model.EventRecord
	if err := ports.Decode(payload, &events); err != nil {
		return nil, err
	}

	doc, ok := h.opts.Generator.Generate(events)
	if !ok {
		appLog.Debug("calendar export skipped: no events")
		return nil, nil
	}

	filename := delivery.Filename(events, h.opts.GenericFilename)
	appLog.Info("calendar exported", "events", len(events), "filename", filename)
	return &ports.Reply{
		ContentType: delivery.ContentType,
		Disposition: "attachment",
		Filename:    filename,
		Body:        []byte(doc),
	}, nil
}

func (h *Host) print(ctx context.Context, _ json.RawMessage) (*ports.Reply, error) {
	pdf, err := h.opts.Printer.Print(ctx)
	if err != nil {
		return nil, fmt.Errorf("host: print: %w", err)
	}
	return &ports.Reply{
		ContentType: "application/pdf",
		Disposition: "inline",
		Filename:    printFilename,
		Body:        pdf,
	}, nil
}
