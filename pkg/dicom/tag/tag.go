// Package tag defines DICOM attribute tags
package tag

// Tag is a 32-bit attribute key: group in the high 16 bits, element in the
// low 16 bits. Ordering is plain unsigned integer ordering.
type Tag uint32

// New creates a new Tag
func New(group, element uint16) Tag {
	return Tag(uint32(group)<<16 | uint32(element))
}

// Group returns the high 16 bits
func (t Tag) Group() uint16 { return uint16(t >> 16) }

// Element returns the low 16 bits
func (t Tag) Element() uint16 { return uint16(t) }

// IsPrivate returns true if this tag lives in a private (odd) group.
// Groups 0001, 0003, 0005, 0007 and FFFF are illegal and never private.
func (t Tag) IsPrivate() bool {
	g := t.Group()
	return g&1 == 1 && g > 0x0007 && g != 0xFFFF
}

// IsPrivateCreator returns true for (gggg,0010-00FF) in a private group
func (t Tag) IsPrivateCreator() bool {
	e := t.Element()
	return t.IsPrivate() && e >= 0x0010 && e <= 0x00FF
}

// IsGroupLength returns true for (gggg,0000)
func (t Tag) IsGroupLength() bool {
	return t.Element() == 0
}

// IsFileMeta returns true if this tag is in the File Meta Information group
func (t Tag) IsFileMeta() bool {
	return t.Group() == 0x0002
}

// IsDelimiter returns true for item and sequence delimitation tags
func (t Tag) IsDelimiter() bool {
	return t == Item || t == ItemDelimitationItem || t == SequenceDelimitationItem
}

// CreatorOf returns the creator slot (gggg,00xx) that reserves the block
// holding private tag (gggg,xxyy)
func CreatorOf(t Tag) Tag {
	return Tag(uint32(t)&0xFFFF0000 | (uint32(t)>>8)&0xFF)
}

// ToPrivate maps the low byte of t into the block reserved by creator
func ToPrivate(creator, t Tag) Tag {
	return Tag(uint32(creator)&0xFFFF0000 | (uint32(creator)&0xFF)<<8 | uint32(t)&0xFF)
}

// OverlayGroup returns the offset added to 60xx tags for repeating group i (0-15)
func OverlayGroup(i int) Tag {
	return Tag(uint32(i) << 17)
}

// File Meta Information (Group 0002)
const (
	FileMetaInformationGroupLength Tag = 0x00020000 // UL
	FileMetaInformationVersion     Tag = 0x00020001 // OB
	MediaStorageSOPClassUID        Tag = 0x00020002 // UI
	MediaStorageSOPInstanceUID     Tag = 0x00020003 // UI
	TransferSyntaxUID              Tag = 0x00020010 // UI
	ImplementationClassUID         Tag = 0x00020012 // UI
	ImplementationVersionName      Tag = 0x00020013 // SH
	SourceApplicationEntityTitle   Tag = 0x00020016 // AE
)

// SOP Common, Patient, Study, Series, Equipment
const (
	SpecificCharacterSet     Tag = 0x00080005 // CS
	ImageType                Tag = 0x00080008 // CS
	SOPClassUID              Tag = 0x00080016 // UI
	SOPInstanceUID           Tag = 0x00080018 // UI
	StudyDate                Tag = 0x00080020 // DA
	Modality                 Tag = 0x00080060 // CS
	Manufacturer             Tag = 0x00080070 // LO
	StationName              Tag = 0x00081010 // SH
	ReferencedImageSequence  Tag = 0x00081140 // SQ
	ReferencedSOPClassUID    Tag = 0x00081150 // UI
	ReferencedSOPInstanceUID Tag = 0x00081155 // UI
	PatientName              Tag = 0x00100010 // PN
	PatientID                Tag = 0x00100020 // LO
	BodyPartExamined         Tag = 0x00180015 // CS
	StudyInstanceUID         Tag = 0x0020000D // UI
	SeriesInstanceUID        Tag = 0x0020000E // UI
	InstanceNumber           Tag = 0x00200013 // IS
)

// Image Pixel Module (Group 0028)
const (
	SamplesPerPixel            Tag = 0x00280002 // US
	PhotometricInterpretation  Tag = 0x00280004 // CS
	PlanarConfiguration        Tag = 0x00280006 // US
	NumberOfFrames             Tag = 0x00280008 // IS
	Rows                       Tag = 0x00280010 // US
	Columns                    Tag = 0x00280011 // US
	PixelSpacing               Tag = 0x00280030 // DS
	BitsAllocated              Tag = 0x00280100 // US
	BitsStored                 Tag = 0x00280101 // US
	HighBit                    Tag = 0x00280102 // US
	PixelRepresentation        Tag = 0x00280103 // US
	SmallestImagePixelValue    Tag = 0x00280106 // US or SS
	LargestImagePixelValue     Tag = 0x00280107 // US or SS
	PixelPaddingValue          Tag = 0x00280120 // US or SS
	PixelPaddingRangeLimit     Tag = 0x00280121 // US or SS
	PixelIntensityRelationship Tag = 0x00281040 // CS
)

// Modality LUT, VOI LUT and Palette Color (Group 0028)
const (
	WindowCenter                              Tag = 0x00281050 // DS
	WindowWidth                               Tag = 0x00281051 // DS
	RescaleIntercept                          Tag = 0x00281052 // DS
	RescaleSlope                              Tag = 0x00281053 // DS
	RescaleType                               Tag = 0x00281054 // LO
	WindowCenterWidthExplanation              Tag = 0x00281055 // LO
	VOILUTFunction                            Tag = 0x00281056 // CS
	RedPaletteColorLookupTableDescriptor      Tag = 0x00281101 // US
	GreenPaletteColorLookupTableDescriptor    Tag = 0x00281102 // US
	BluePaletteColorLookupTableDescriptor     Tag = 0x00281103 // US
	RedPaletteColorLookupTableData            Tag = 0x00281201 // OW
	GreenPaletteColorLookupTableData          Tag = 0x00281202 // OW
	BluePaletteColorLookupTableData           Tag = 0x00281203 // OW
	SegmentedRedPaletteColorLookupTableData   Tag = 0x00281221 // OW
	SegmentedGreenPaletteColorLookupTableData Tag = 0x00281222 // OW
	SegmentedBluePaletteColorLookupTableData  Tag = 0x00281223 // OW
	ModalityLUTSequence                       Tag = 0x00283000 // SQ
	LUTDescriptor                             Tag = 0x00283002 // US
	LUTExplanation                            Tag = 0x00283003 // LO
	ModalityLUTType                           Tag = 0x00283004 // LO
	LUTData                                   Tag = 0x00283006 // US or OW
	VOILUTSequence                            Tag = 0x00283010 // SQ
	SoftcopyVOILUTSequence                    Tag = 0x00283110 // SQ
)

// Presentation State
const (
	GraphicLayer                                 Tag = 0x00700002 // CS
	GraphicLayerSequence                         Tag = 0x00700060 // SQ
	GraphicLayerOrder                            Tag = 0x00700062 // IS
	GraphicLayerRecommendedDisplayGrayscaleValue Tag = 0x00700066 // US
	ContentLabel                                 Tag = 0x00700080 // CS
	GraphicLayerRecommendedDisplayCIELabValue    Tag = 0x00700401 // US
	PresentationLUTSequence                      Tag = 0x20500010 // SQ
	PresentationLUTShape                         Tag = 0x20500020 // CS
)

// Overlay Plane (repeating group 60xx, add OverlayGroup(i))
const (
	OverlayRows             Tag = 0x60000010 // US
	OverlayColumns          Tag = 0x60000011 // US
	NumberOfFramesInOverlay Tag = 0x60000015 // IS
	OverlayDescription      Tag = 0x60000022 // LO
	OverlayType             Tag = 0x60000040 // CS
	OverlayOrigin           Tag = 0x60000050 // SS
	ImageFrameOrigin        Tag = 0x60000051 // US
	OverlayBitsAllocated    Tag = 0x60000100 // US
	OverlayBitPosition      Tag = 0x60000102 // US
	OverlayLabel            Tag = 0x60001500 // LO
	OverlayActivationLayer  Tag = 0x60001001 // CS
	OverlayData             Tag = 0x60003000 // OB or OW
)

// Pixel Data and delimiters
const (
	FloatPixelData           Tag = 0x7FE00008 // OF
	DoubleFloatPixelData     Tag = 0x7FE00009 // OD
	PixelData                Tag = 0x7FE00010 // OB or OW
	Item                     Tag = 0xFFFEE000
	ItemDelimitationItem     Tag = 0xFFFEE00D
	SequenceDelimitationItem Tag = 0xFFFEE0DD
)
