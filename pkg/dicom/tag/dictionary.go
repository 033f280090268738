package tag

import (
	"github.com/jpfielding/dicomimg.go/pkg/dicom/vr"
)

// Entry is the dictionary record for a standard attribute
type Entry struct {
	Tag     Tag
	Keyword string
	VR      vr.VR
}

var dictionary = []Entry{
	{FileMetaInformationGroupLength, "FileMetaInformationGroupLength", vr.UL},
	{FileMetaInformationVersion, "FileMetaInformationVersion", vr.OB},
	{MediaStorageSOPClassUID, "MediaStorageSOPClassUID", vr.UI},
	{MediaStorageSOPInstanceUID, "MediaStorageSOPInstanceUID", vr.UI},
	{TransferSyntaxUID, "TransferSyntaxUID", vr.UI},
	{ImplementationClassUID, "ImplementationClassUID", vr.UI},
	{ImplementationVersionName, "ImplementationVersionName", vr.SH},
	{SourceApplicationEntityTitle, "SourceApplicationEntityTitle", vr.AE},
	{SpecificCharacterSet, "SpecificCharacterSet", vr.CS},
	{ImageType, "ImageType", vr.CS},
	{SOPClassUID, "SOPClassUID", vr.UI},
	{SOPInstanceUID, "SOPInstanceUID", vr.UI},
	{StudyDate, "StudyDate", vr.DA},
	{Modality, "Modality", vr.CS},
	{Manufacturer, "Manufacturer", vr.LO},
	{StationName, "StationName", vr.SH},
	{ReferencedImageSequence, "ReferencedImageSequence", vr.SQ},
	{ReferencedSOPClassUID, "ReferencedSOPClassUID", vr.UI},
	{ReferencedSOPInstanceUID, "ReferencedSOPInstanceUID", vr.UI},
	{PatientName, "PatientName", vr.PN},
	{PatientID, "PatientID", vr.LO},
	{BodyPartExamined, "BodyPartExamined", vr.CS},
	{StudyInstanceUID, "StudyInstanceUID", vr.UI},
	{SeriesInstanceUID, "SeriesInstanceUID", vr.UI},
	{InstanceNumber, "InstanceNumber", vr.IS},
	{SamplesPerPixel, "SamplesPerPixel", vr.US},
	{PhotometricInterpretation, "PhotometricInterpretation", vr.CS},
	{PlanarConfiguration, "PlanarConfiguration", vr.US},
	{NumberOfFrames, "NumberOfFrames", vr.IS},
	{Rows, "Rows", vr.US},
	{Columns, "Columns", vr.US},
	{PixelSpacing, "PixelSpacing", vr.DS},
	{BitsAllocated, "BitsAllocated", vr.US},
	{BitsStored, "BitsStored", vr.US},
	{HighBit, "HighBit", vr.US},
	{PixelRepresentation, "PixelRepresentation", vr.US},
	{SmallestImagePixelValue, "SmallestImagePixelValue", vr.US},
	{LargestImagePixelValue, "LargestImagePixelValue", vr.US},
	{PixelPaddingValue, "PixelPaddingValue", vr.US},
	{PixelPaddingRangeLimit, "PixelPaddingRangeLimit", vr.US},
	{PixelIntensityRelationship, "PixelIntensityRelationship", vr.CS},
	{WindowCenter, "WindowCenter", vr.DS},
	{WindowWidth, "WindowWidth", vr.DS},
	{RescaleIntercept, "RescaleIntercept", vr.DS},
	{RescaleSlope, "RescaleSlope", vr.DS},
	{RescaleType, "RescaleType", vr.LO},
	{WindowCenterWidthExplanation, "WindowCenterWidthExplanation", vr.LO},
	{VOILUTFunction, "VOILUTFunction", vr.CS},
	{RedPaletteColorLookupTableDescriptor, "RedPaletteColorLookupTableDescriptor", vr.US},
	{GreenPaletteColorLookupTableDescriptor, "GreenPaletteColorLookupTableDescriptor", vr.US},
	{BluePaletteColorLookupTableDescriptor, "BluePaletteColorLookupTableDescriptor", vr.US},
	{RedPaletteColorLookupTableData, "RedPaletteColorLookupTableData", vr.OW},
	{GreenPaletteColorLookupTableData, "GreenPaletteColorLookupTableData", vr.OW},
	{BluePaletteColorLookupTableData, "BluePaletteColorLookupTableData", vr.OW},
	{SegmentedRedPaletteColorLookupTableData, "SegmentedRedPaletteColorLookupTableData", vr.OW},
	{SegmentedGreenPaletteColorLookupTableData, "SegmentedGreenPaletteColorLookupTableData", vr.OW},
	{SegmentedBluePaletteColorLookupTableData, "SegmentedBluePaletteColorLookupTableData", vr.OW},
	{ModalityLUTSequence, "ModalityLUTSequence", vr.SQ},
	{LUTDescriptor, "LUTDescriptor", vr.US},
	{LUTExplanation, "LUTExplanation", vr.LO},
	{ModalityLUTType, "ModalityLUTType", vr.LO},
	{LUTData, "LUTData", vr.OW},
	{VOILUTSequence, "VOILUTSequence", vr.SQ},
	{SoftcopyVOILUTSequence, "SoftcopyVOILUTSequence", vr.SQ},
	{GraphicLayer, "GraphicLayer", vr.CS},
	{GraphicLayerSequence, "GraphicLayerSequence", vr.SQ},
	{GraphicLayerOrder, "GraphicLayerOrder", vr.IS},
	{GraphicLayerRecommendedDisplayGrayscaleValue, "GraphicLayerRecommendedDisplayGrayscaleValue", vr.US},
	{ContentLabel, "ContentLabel", vr.CS},
	{GraphicLayerRecommendedDisplayCIELabValue, "GraphicLayerRecommendedDisplayCIELabValue", vr.US},
	{PresentationLUTSequence, "PresentationLUTSequence", vr.SQ},
	{PresentationLUTShape, "PresentationLUTShape", vr.CS},
	{OverlayRows, "OverlayRows", vr.US},
	{OverlayColumns, "OverlayColumns", vr.US},
	{NumberOfFramesInOverlay, "NumberOfFramesInOverlay", vr.IS},
	{OverlayDescription, "OverlayDescription", vr.LO},
	{OverlayType, "OverlayType", vr.CS},
	{OverlayOrigin, "OverlayOrigin", vr.SS},
	{ImageFrameOrigin, "ImageFrameOrigin", vr.US},
	{OverlayBitsAllocated, "OverlayBitsAllocated", vr.US},
	{OverlayBitPosition, "OverlayBitPosition", vr.US},
	{OverlayActivationLayer, "OverlayActivationLayer", vr.CS},
	{OverlayLabel, "OverlayLabel", vr.LO},
	{OverlayData, "OverlayData", vr.OW},
	{FloatPixelData, "FloatPixelData", vr.OF},
	{DoubleFloatPixelData, "DoubleFloatPixelData", vr.OD},
	{PixelData, "PixelData", vr.OW},
	{Item, "Item", vr.NONE},
	{ItemDelimitationItem, "ItemDelimitationItem", vr.NONE},
	{SequenceDelimitationItem, "SequenceDelimitationItem", vr.NONE},
}

var (
	byTag     = map[Tag]*Entry{}
	byKeyword = map[string]*Entry{}
)

func init() {
	for i := range dictionary {
		e := &dictionary[i]
		byTag[e.Tag] = e
		byKeyword[e.Keyword] = e
	}
}

// normalize folds repeating groups (60xx overlays) onto their base tag
func normalize(t Tag) Tag {
	if g := t.Group(); g >= 0x6000 && g <= 0x601E && g&1 == 0 {
		return t & 0xFF00FFFF
	}
	return t
}

// Lookup returns the dictionary entry for a standard tag
func Lookup(t Tag) (Entry, bool) {
	e, ok := byTag[normalize(t)]
	if !ok {
		return Entry{}, false
	}
	out := *e
	out.Tag = t
	return out, true
}

// ByKeyword resolves a dictionary keyword to its tag
func ByKeyword(keyword string) (Tag, bool) {
	e, ok := byKeyword[keyword]
	if !ok {
		return 0, false
	}
	return e.Tag, true
}

// VROf returns the VR to assume for t in an implicit VR encoding.
// Private creators are LO, group lengths UL, anything unknown is UN.
func VROf(t Tag) vr.VR {
	switch {
	case t.IsPrivateCreator():
		return vr.LO
	case t.IsGroupLength():
		return vr.UL
	}
	if e, ok := byTag[normalize(t)]; ok {
		return e.VR
	}
	return vr.UN
}

// Keyword returns the dictionary keyword or "" for unknown tags
func (t Tag) Keyword() string {
	if e, ok := byTag[normalize(t)]; ok {
		return e.Keyword
	}
	if t.IsPrivateCreator() {
		return "PrivateCreator"
	}
	return ""
}
