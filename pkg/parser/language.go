package parser

// detectLanguage scans headers and the first 50 cells; a Persian/Arabic
// code-point ratio above 30% selects "fa", otherwise "en", falling back to
// "mixed" when neither dominates and the sample contains both scripts, or
// "unknown" when the sample is empty (§4.3 stage 3).
func detectLanguage(rows [][]string) string {
	var sample []rune
	count := 0
	for _, row := range rows {
		for _, cell := range row {
			for _, r := range cell {
				sample = append(sample, r)
				count++
				if count >= 50 {
					break
				}
			}
			if count >= 50 {
				break
			}
		}
		if count >= 50 {
			break
		}
	}

	if len(sample) == 0 {
		return "unknown"
	}

	faCount, latinCount := 0, 0
	for _, r := range sample {
		switch {
		case isPersianArabic(r):
			faCount++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			latinCount++
		}
	}

	ratio := float64(faCount) / float64(len(sample))
	switch {
	case ratio > 0.30:
		return "fa"
	case latinCount > 0:
		return "en"
	case faCount > 0:
		return "mixed"
	default:
		return "unknown"
	}
}

// isPersianArabic reports whether r falls in the Arabic or Arabic
// Presentation Forms Unicode blocks used by Persian/Arabic digits and text.
func isPersianArabic(r rune) bool {
	return (r >= 0x0600 && r <= 0x06FF) || (r >= 0xFB50 && r <= 0xFDFF) || (r >= 0xFE70 && r <= 0xFEFF)
}
