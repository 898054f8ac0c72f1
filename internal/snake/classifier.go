package snake

// RawEvent is one row of an inbound event batch, as delivered by the
// tagger bridge collaborator: a structure-of-arrays layout flattened
// to one struct per row for classifier convenience.
type RawEvent struct {
	Type         uint8
	MissedEvents uint16
	Channel      int32
	Time         Ps
}

// ClassifiedEvent is the classifier's verdict for one RawEvent: the
// outcome to act on and, for Displayed outcomes, the voxel to write.
type ClassifiedEvent struct {
	Kind  ProcessedEventKind
	Coord Coord3
	Color RGB
}

// Classifier dispatches raw tagger events against a ChannelMap and a
// Snake. It is stateless with respect to time —
// the snake and the dropped-event counter carry all advancing state —
// so a Classifier can be shared freely and never rewinds a lookup.
type Classifier struct {
	channels *ChannelMap
	dropped  uint64
	errors   uint64
}

// NewClassifier builds a Classifier bound to the given channel map.
func NewClassifier(channels *ChannelMap) *Classifier {
	return &Classifier{channels: channels}
}

// Dropped reports the number of events annotated with missed_events > 0.
func (c *Classifier) Dropped() uint64 { return c.dropped }

// Errors reports the number of events with a non-zero type code.
func (c *Classifier) Errors() uint64 { return c.errors }

// Dispatch classifies one event against the given Snake. A returned
// error is always a *SnakeCorruptedError from a failed lookup — the
// driver treats it as fatal.
func (c *Classifier) Dispatch(ev RawEvent, s *Snake) (ClassifiedEvent, error) {
	if ev.MissedEvents > 0 {
		// Missed events are an annotation, not a replacement: count
		// them and still dispatch on channel.
		c.dropped++
	}
	if ev.Type != 0 {
		// Overflow/error tag: no-op plus metric. The tagger's own
		// event-type table is not documented beyond "zero is normal".
		c.errors++
		return ClassifiedEvent{Kind: NoOp}, nil
	}

	kind := c.channels.Lookup(ChannelID(ev.Channel))
	switch kind {
	case Pmt1, Pmt2, Pmt3, Pmt4:
		idx, _ := kind.PmtChannelIndex()
		result, err := s.Lookup(ev.Time, idx)
		if err != nil {
			return ClassifiedEvent{}, err
		}
		return ClassifiedEvent{Kind: result.Kind, Coord: result.Coord, Color: result.Color}, nil
	case Line:
		// TODO(line-sync): the builder already has LineShift/shiftRowPs;
		// wire a Line-event rebias into it once the correction the
		// instrument expects at Dispatch time is specified.
		return ClassifiedEvent{Kind: NoOp}, nil
	case Frame:
		return ClassifiedEvent{Kind: FrameMarker}, nil
	case TagLens:
		s.RecordTagLensTime(ev.Time)
		tracef("taglens sync at %d ps", ev.Time)
		return ClassifiedEvent{Kind: NoOp}, nil
	case Laser:
		// Reserved for FLIM; no-op today.
		return ClassifiedEvent{Kind: NoOp}, nil
	default: // Ignored, Invalid
		return ClassifiedEvent{Kind: NoOp}, nil
	}
}
