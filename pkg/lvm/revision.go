// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"lvm-access/internal/pkg/engine"
)

// Revision identifies the committed state of a volume group.
type Revision struct {
	Name  string
	UUID  UUID
	SeqNo uint64
}

func (r Revision) String() string {
	return fmt.Sprintf("%s@%d", r.Name, r.SeqNo)
}

// Matches reports whether r and o describe the same group at the same
// sequence number.
func (r Revision) Matches(o Revision) bool {
	return r.Name == o.Name && r.UUID == o.UUID && r.SeqNo == o.SeqNo
}

// Revision returns the session's current revision. It is the zero Revision
// once the session is released.
func (vg *VolumeGroup) Revision() Revision {
	var r Revision
	vg.client.read(vg.lease, func(eng engine.Engine) {
		r = Revision{
			Name:  eng.VGGetName(vg.handle),
			UUID:  uuidOf(eng.VGGetUUID(vg.handle)),
			SeqNo: eng.VGGetSeqno(vg.handle),
		}
	})
	return r
}

// OpenVolumeGroupAt opens the group named by rev for writing and checks that
// nobody committed since rev was taken. A mismatch closes the session and
// returns a ConcurrentModificationError.
func (c *Client) OpenVolumeGroupAt(ctx context.Context, rev Revision) (*VolumeGroup, error) {
	ctx, span := c.tracer.Start(ctx, "lvm/OpenVolumeGroupAt")
	defer span.End()
	span.SetAttributes(attribute.String("vg.name", rev.Name), attribute.Int64("vg.seqno", int64(rev.SeqNo)))

	vg, err := c.OpenVolumeGroup(ctx, rev.Name, ReadWrite)
	if err != nil {
		return nil, err
	}
	got := vg.Revision()
	if !rev.Matches(got) {
		if err := vg.Close(); err != nil {
			log.FromContext(ctx).Error(err, "failed to close stale volume group session", "vg", rev.Name)
		}
		return nil, &ConcurrentModificationError{Want: rev, Got: got}
	}
	return vg, nil
}

// ReopenForWrite closes a read-only session and opens the same group for
// writing, failing with ErrConcurrentModification if it changed in between.
// A ReadWrite session is returned as is.
func (vg *VolumeGroup) ReopenForWrite(ctx context.Context) (*VolumeGroup, error) {
	if err := vg.lease.check(); err != nil {
		return nil, fmt.Errorf("ReopenForWrite: %w", err)
	}
	if vg.mode == ReadWrite {
		return vg, nil
	}
	rev := vg.Revision()
	if err := vg.Close(); err != nil {
		return nil, err
	}
	return vg.client.OpenVolumeGroupAt(ctx, rev)
}
