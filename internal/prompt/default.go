package prompt

// Default is the compiled-in classification prompt. It is used whenever
// no custom prompt has been saved, or when the prompt file cannot be
// read at startup.
//
// The numbered-line reply convention at the end is load-bearing: the
// resolver appends a numbered bio list to the request and parses the
// response line by line, matching labels back to bios by number.
const Default = `For each numbered Instagram bio below, decide whether the profile shows explicit Christian affiliation.

Say yes if the bio contains an explicit Christian signal - e.g. the words Jesus, Christ, Christian, Bible, a Scripture reference (John 3:16, 1 Cor 13:4-8, etc.), a cross emoji, "saved by grace", "follower of Christ", or similar.

If the bio does not clearly show Christian affiliation, say no.

Reply with one line per bio, in the same order, each line formatted as the bio's number followed by yes or no, like:
1) yes
2) no`
