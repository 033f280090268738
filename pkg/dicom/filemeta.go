package dicom

import (
	"github.com/jpfielding/dicomimg.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomimg.go/pkg/dicom/vr"
	"github.com/jpfielding/dicomimg.go/pkg/errs"
	"github.com/jpfielding/dicomimg.go/pkg/util"
)

// Implementation identifiers written into file meta information
var (
	ImplementationClassUID    = util.HashUID("github.com/jpfielding/dicomimg.go")
	ImplementationVersionName = "DICOMIMG_GO_1"
)

// NewFileMetaInformation builds the group 0002 attributes for a file
// holding instance iuid of SOP class cuid encoded in tsuid
func NewFileMetaInformation(iuid, cuid, tsuid string) (*AttributeSet, error) {
	switch {
	case iuid == "":
		return nil, errs.Precondition("file meta", "missing SOP instance UID")
	case cuid == "":
		return nil, errs.Precondition("file meta", "missing SOP class UID")
	case tsuid == "":
		return nil, errs.Precondition("file meta", "missing transfer syntax UID")
	}
	fmi := NewSet()
	fmi.SetBytes(tag.FileMetaInformationVersion, vr.OB, []byte{0, 1})
	fmi.SetString(tag.MediaStorageSOPClassUID, vr.UI, cuid)
	fmi.SetString(tag.MediaStorageSOPInstanceUID, vr.UI, iuid)
	fmi.SetString(tag.TransferSyntaxUID, vr.UI, tsuid)
	fmi.SetString(tag.ImplementationClassUID, vr.UI, ImplementationClassUID)
	fmi.SetString(tag.ImplementationVersionName, vr.SH, ImplementationVersionName)
	return fmi, nil
}

// FileMetaFor derives file meta information from the SOP Common attributes.
// A data set without a SOP Instance UID is given a new 2.25 UID.
func FileMetaFor(ds *AttributeSet, tsuid string) (*AttributeSet, error) {
	iuid := ds.GetStringOr(tag.SOPInstanceUID, "")
	if iuid == "" && ds.GetStringOr(tag.SOPClassUID, "") != "" {
		iuid = util.NewUID()
		ds.SetString(tag.SOPInstanceUID, vr.UI, iuid)
	}
	return NewFileMetaInformation(
		iuid,
		ds.GetStringOr(tag.SOPClassUID, ""),
		tsuid,
	)
}
