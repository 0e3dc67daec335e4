// Package tokens locates length measurements inside free-form recognized
// text.
//
// The scanner accepts a maximal run of digits with at most one decimal point,
// optionally followed by whitespace and a unit abbreviation (mm, cm, m, in).
// Numbers glued to another digit group by a dot (1.2.3, 12.34.56) are never
// split into smaller tokens. Locale decimal commas between two digits are
// rewritten to periods before scanning.
//
// Two filters run over every token found by Extract:
//
//   - a ±4 character window around the token is rejected when it contains a
//     version string (v2.0, v1.2.3) or a three-group dotted integer;
//   - a token without an explicit millimeter unit is kept only when a
//     dimension cue (w, h, d, width, height, depth, dia, diameter, size, mm,
//     x, ×) appears within ±12 characters.
//
// ExtractFromImage wraps Extract with a recognition Engine. When the engine
// cannot run, the raw payload is decoded as lossy UTF-8 text and scanned
// anyway; the result always reports which path produced the text.
package tokens
