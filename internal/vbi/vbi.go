package vbi

// Unset marks a code that was not present in the VBI data.
const Unset = -1

const (
	leadInCode       = 0x88FFFF
	leadOutCode      = 0x80EEEE
	pictureStopCode  = 0x82CFFF
	cavPictureMask   = 0xF00000
	cavPictureValue  = 0xF00000
	chapterMask      = 0xF00FFF
	chapterValue     = 0x800DDD
	programmeMask    = 0xF0FF00
	programmeValue   = 0xF0DD00
	clvPictureMask   = 0xF0F000
	clvPictureValue  = 0x80E000
	framesPerSecPAL  = 25
	framesPerSecNTSC = 30
)

// Frame is the decoded address information for one frame.
type Frame struct {
	LeadIn      bool
	LeadOut     bool
	PictureStop bool
	PicNo       int
	Chapter     int
	ClvHr       int
	ClvMin      int
	ClvSec      int
	ClvPicNo    int
}

// DecodeFunc turns the VBI words of a frame's first and second field into a
// decoded Frame.
type DecodeFunc func(first, second [3]int) Frame

// HasPictureNumber reports whether the frame carries a valid CAV picture number.
func (f Frame) HasPictureNumber() bool {
	return f.PicNo > 0
}

// HasTimecode reports whether every CLV timecode component is present.
func (f Frame) HasTimecode() bool {
	return f.ClvHr != Unset && f.ClvMin != Unset && f.ClvSec != Unset && f.ClvPicNo != Unset
}

// Timecode returns the CLV timecode components of the frame.
func (f Frame) Timecode() ClvTimecode {
	return ClvTimecode{Hours: f.ClvHr, Minutes: f.ClvMin, Seconds: f.ClvSec, PictureNumber: f.ClvPicNo}
}

// ClvTimecode is a CLV disc address.
type ClvTimecode struct {
	Hours         int
	Minutes       int
	Seconds       int
	PictureNumber int
}

// FrameNumber converts the timecode to a frame number using 25 frames per
// second for PAL and 30 for NTSC. It returns Unset if any component is missing.
func (tc ClvTimecode) FrameNumber(pal bool) int {
	if tc.Hours == Unset || tc.Minutes == Unset || tc.Seconds == Unset || tc.PictureNumber == Unset {
		return Unset
	}
	fps := framesPerSecNTSC
	if pal {
		fps = framesPerSecPAL
	}
	return ((tc.Hours*3600)+(tc.Minutes*60)+tc.Seconds)*fps + tc.PictureNumber
}

// DecodeFrame decodes the line 16, 17 and 18 words of both fields of a frame.
func DecodeFrame(first, second [3]int) Frame {
	f := Frame{
		PicNo:    Unset,
		Chapter:  Unset,
		ClvHr:    Unset,
		ClvMin:   Unset,
		ClvSec:   Unset,
		ClvPicNo: Unset,
	}

	// Lines 17 and 18 carry the address codes; line 16 may repeat the CLV
	// picture number and the picture stop code.
	addr := []int{first[1], first[2], second[1], second[2]}
	all := []int{first[0], first[1], first[2], second[0], second[1], second[2]}

	for _, word := range addr {
		switch word {
		case leadInCode:
			f.LeadIn = true
		case leadOutCode:
			f.LeadOut = true
		}
	}
	for _, word := range all {
		if word == pictureStopCode {
			f.PictureStop = true
		}
	}

	for _, word := range addr {
		if f.PicNo == Unset && word&cavPictureMask == cavPictureValue {
			if n := decodeBCD(word & 0x07FFFF); n != Unset {
				f.PicNo = n
			}
		}
		if f.Chapter == Unset && word&chapterMask == chapterValue {
			if n := decodeBCD((word & 0x07F000) >> 12); n != Unset {
				f.Chapter = n
			}
		}
		if f.ClvHr == Unset && word&programmeMask == programmeValue {
			hr := decodeBCD((word & 0x0F0000) >> 16)
			mn := decodeBCD(word & 0x0000FF)
			if hr != Unset && mn != Unset {
				f.ClvHr = hr
				f.ClvMin = mn
			}
		}
	}

	for _, word := range all {
		if f.ClvSec != Unset {
			break
		}
		if word&clvPictureMask != clvPictureValue || word == leadOutCode {
			continue
		}
		tens := (word & 0x0F0000) >> 16
		units := decodeBCD((word & 0x000F00) >> 8)
		pic := decodeBCD(word & 0x0000FF)
		if tens < 0xA || tens > 0xF || units == Unset || pic == Unset {
			continue
		}
		f.ClvSec = 10*(tens-0xA) + units
		f.ClvPicNo = pic
	}

	return f
}

// decodeBCD decodes a packed BCD value, returning Unset if any nibble is not
// a decimal digit.
func decodeBCD(value int) int {
	if value < 0 {
		return Unset
	}
	result := 0
	multiplier := 1
	for value > 0 {
		digit := value & 0x0F
		if digit > 9 {
			return Unset
		}
		result += digit * multiplier
		multiplier *= 10
		value >>= 4
	}
	return result
}

// EncodePictureNumber builds the line 17/18 word for a CAV picture number.
func EncodePictureNumber(picNo int) int {
	return cavPictureValue | encodeBCD(picNo)&0x07FFFF
}

// EncodeProgrammeTime builds the line 17/18 word for a CLV programme time code.
func EncodeProgrammeTime(hours, minutes int) int {
	return programmeValue | encodeBCD(hours)<<16 | encodeBCD(minutes)
}

// EncodeClvPicture builds the line 16 word for a CLV seconds/picture code.
func EncodeClvPicture(seconds, picture int) int {
	return clvPictureValue | (0xA+seconds/10)<<16 | (seconds%10)<<8 | encodeBCD(picture)
}

func encodeBCD(value int) int {
	result := 0
	shift := 0
	for value > 0 {
		result |= (value % 10) << shift
		value /= 10
		shift += 4
	}
	return result
}

// EncodeAddress builds VBI words addressing frame. CAV frames carry the
// picture number on lines 17 and 18 of both fields. CLV frames carry the
// seconds/picture code on line 16 and the programme time code on line 17 of
// the first field.
func EncodeAddress(frame int, cav, pal bool) (first, second [3]int) {
	if cav {
		code := EncodePictureNumber(frame)
		return [3]int{0, code, code}, [3]int{0, code, code}
	}
	fps := framesPerSecNTSC
	if pal {
		fps = framesPerSecPAL
	}
	seconds := frame / fps
	picture := frame % fps
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	seconds %= 60
	return [3]int{EncodeClvPicture(seconds, picture), EncodeProgrammeTime(hours, minutes), 0}, [3]int{}
}
