package browser

// serializeElementJS defines the in-page helpers shared by the capture
// hook and the document walk. The payload shape mirrors what
// recorder.FromPayload expects: the ancestor chain ships as raw facts
// and selector synthesis stays on the Go side.
const serializeElementJS = `
	const __scoutVisible = (el) => {
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		return (
			rect.width > 0 &&
			rect.height > 0 &&
			style.display !== 'none' &&
			style.visibility !== 'hidden' &&
			style.opacity !== '0'
		);
	};

	const __scoutChain = (el) => {
		const chain = [];
		let cur = el;
		while (cur && cur.nodeType === 1) {
			let ord = 1;
			let sib = cur.previousElementSibling;
			while (sib) {
				if (sib.tagName === cur.tagName) ord++;
				sib = sib.previousElementSibling;
			}
			chain.unshift({
				tag: cur.tagName.toLowerCase(),
				id: cur.id || '',
				ordinal: ord
			});
			cur = cur.parentElement;
		}
		return chain;
	};

	const __scoutShadowHosts = (el) => {
		const hosts = [];
		let root = el.getRootNode ? el.getRootNode() : document;
		while (root && root.host) {
			hosts.unshift(root.host.tagName.toLowerCase());
			root = root.host.getRootNode();
		}
		return hosts;
	};

	const __scoutSerialize = (el) => {
		const rect = el.getBoundingClientRect();
		const visible = __scoutVisible(el);

		const attrs = {};
		for (const a of el.attributes) {
			attrs[a.name.toLowerCase()] = a.value;
		}

		let txt = '';
		if (el.innerText && el.innerText.trim()) {
			txt = el.innerText;
		} else if (el.value !== undefined && el.value !== null && String(el.value).trim()) {
			txt = String(el.value);
		}
		txt = txt.trim();
		if (txt.length > 300) {
			txt = txt.substring(0, 300);
		}

		return {
			tag: el.tagName.toLowerCase(),
			id: el.id || '',
			name: el.getAttribute('name') || '',
			className: (typeof el.className === 'string') ? el.className : (el.getAttribute('class') || ''),
			text: txt,
			role: el.getAttribute('role') || '',
			ariaLabel: el.getAttribute('aria-label') || '',
			attributes: attrs,
			chain: __scoutChain(el),
			shadowHosts: __scoutShadowHosts(el),
			visible: visible,
			box: visible ? {
				x: rect.left,
				y: rect.top,
				width: rect.width,
				height: rect.height
			} : null,
			framed: window.self !== window.top,
			connected: el.isConnected !== false
		};
	};
`

// captureHookScript arms a capture-phase click listener that serializes
// the real event target and hands it to the exposed binding. The guard
// flag makes reinstallation a no-op, so the script is safe to run both
// as an init script and against the live document.
func captureHookScript() string {
	return `(() => {
	if (window.__elementScoutHooked) return;
	window.__elementScoutHooked = true;
` + serializeElementJS + `
	document.addEventListener('click', (ev) => {
		try {
			let target = ev.target;
			if (ev.composedPath) {
				const path = ev.composedPath();
				if (path.length > 0) target = path[0];
			}
			let el = target;
			if (el && el.nodeType !== 1) el = el.parentElement;
			if (!el) return;

			const payload = __scoutSerialize(el);
			if (window.` + captureBindingName + `) {
				window.` + captureBindingName + `(payload);
			}
		} catch (e) {}
	}, true);
})()`
}

// elementWalkScript serializes up to opts.max elements in document
// order. The regular walk keeps visible elements; with opts.hidden set
// it keeps the invisible ones instead and omits their boxes.
func elementWalkScript() string {
	return `(opts) => {
	try {
` + serializeElementJS + `
		const out = [];
		const all = document.querySelectorAll('*');
		for (let i = 0; i < all.length && out.length < opts.max; i++) {
			const el = all[i];
			const payload = __scoutSerialize(el);
			if (opts.hidden ? payload.visible : !payload.visible) continue;
			if (opts.hidden) {
				payload.box = null;
			}
			out.push(payload);
		}
		return out;
	} catch (e) {
		return [];
	}
}`
}
