package img

import (
	"errors"

	"github.com/jpfielding/dicomimg.go/pkg/dicom"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/errs"
	"github.com/jpfielding/dicomimg.go/pkg/lut"
)

// GrayscaleSoftcopyPresentationStateStorage is the SOP class a presentation
// state must carry
const GrayscaleSoftcopyPresentationStateStorage = "1.2.840.10008.5.1.4.1.1.11.1"

// PresentationState carries the LUTs and overlays a grayscale softcopy
// presentation state applies over an image
type PresentationState struct {
	set            *dicom.AttributeSet
	modalityLUT    *ModalityLUT
	voiLUT         *VOILUT
	lut            *lut.Table
	lutExplanation string
	shapeMode      string
}

// NewPresentationState reads a grayscale softcopy presentation state
func NewPresentationState(set *dicom.AttributeSet, opts Options) (*PresentationState, error) {
	if set == nil {
		return nil, errs.Precondition("presentation state", "nil attribute set")
	}
	if cuid, _ := set.GetString(tag.SOPClassUID); cuid != GrayscaleSoftcopyPresentationStateStorage {
		return nil, errs.Precondition("presentation state", "sop class %q is not a grayscale softcopy presentation state", cuid)
	}
	var errList []error
	pr := &PresentationState{set: set}

	var err error
	if pr.modalityLUT, err = NewModalityLUT(set, opts); err != nil {
		errList = append(errList, err)
	}
	if item, ok := set.GetItem(tag.SoftcopyVOILUTSequence, 0); ok {
		if pr.voiLUT, err = NewVOILUT(item, opts); err != nil {
			errList = append(errList, err)
		}
	}

	if seq, ok := set.Get(tag.PresentationLUTSequence); ok {
		if item, ok := seq.Item(0); ok && item.Contains(tag.LUTData) {
			if pr.lut, err = lutFromItem(item, opts); err != nil {
				errList = append(errList, err)
			}
			pr.lutExplanation = set.GetStringOr(tag.LUTExplanation, "")
		}
		pr.shapeMode = "IDENTITY"
	} else {
		// IDENTITY or INVERSE
		pr.shapeMode = set.GetStringOr(tag.PresentationLUTShape, "")
	}
	return pr, errors.Join(errList...)
}

// AttributeSet returns the presentation state attributes
func (pr *PresentationState) AttributeSet() *dicom.AttributeSet { return pr.set }

func (pr *PresentationState) ModalityLUT() *ModalityLUT { return pr.modalityLUT }

// VOILUT returns the first Softcopy VOI LUT Sequence item, or nil
func (pr *PresentationState) VOILUT() *VOILUT { return pr.voiLUT }

// LUT returns the presentation LUT table
func (pr *PresentationState) LUT() (*lut.Table, bool) { return pr.lut, pr.lut != nil }

func (pr *PresentationState) LUTExplanation() string { return pr.lutExplanation }

// ShapeMode returns IDENTITY, INVERSE or "" when unspecified
func (pr *PresentationState) ShapeMode() string { return pr.shapeMode }

// HasOverlay reports whether any overlay group carries Overlay Rows
func (pr *PresentationState) HasOverlay() bool {
	return len(ActiveOverlayGroups(pr.set, tag.OverlayRows, 0xFFFF)) > 0
}

// ActiveOverlayGroups lists the overlay groups assigned to a graphic layer
func (pr *PresentationState) ActiveOverlayGroups() []tag.Tag {
	return ActiveOverlayGroups(pr.set, tag.OverlayActivationLayer, 0xFFFF)
}

// EmbeddedOverlays lists embedded overlay planes described by the
// presentation state
func (pr *PresentationState) EmbeddedOverlays() []EmbeddedOverlay {
	return EmbeddedOverlays(pr.set)
}

// OverlayData returns the bitmap overlays activated on a graphic layer
func (pr *PresentationState) OverlayData(activationMask int) []OverlayData {
	return PresentationOverlayData(pr.set, activationMask)
}
